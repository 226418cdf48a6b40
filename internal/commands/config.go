package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/bank/adapters"
	"github.com/lox/bank-statement-sync/internal/bankformat"
	"github.com/lox/bank-statement-sync/internal/banksync"
	"github.com/lox/bank-statement-sync/internal/db"
)

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	// DataDir is the path to the data directory
	DataDir string `help:"Path to data directory" default:"./data" env:"BANK_SYNC_DATA_DIR"`
	// Timezone decides what "today" is for default sync ranges
	Timezone string `help:"Timezone used to decide the current date" required:"" default:"Europe/Istanbul"`
	// LogLevel is the logging level to use
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
	// BanksFile is an optional YAML file of extra or replacement bank formats
	BanksFile string `help:"YAML file with additional bank statement formats" type:"existingfile" env:"BANK_FORMATS_FILE"`
}

// Logger creates a stderr logger at the configured level
func (c CommonConfig) Logger() (*log.Logger, error) {
	logger := log.New(os.Stderr)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	return logger, nil
}

// Location loads the configured timezone
func (c CommonConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}
	return loc, nil
}

// Clock returns the current time in the configured timezone
func (c CommonConfig) Clock() (func() time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return func() time.Time {
		return time.Now().In(loc)
	}, nil
}

// Formats returns the built-in bank formats plus any from BanksFile
func (c CommonConfig) Formats() (*bankformat.Registry, error) {
	formats := bankformat.Default()
	if c.BanksFile == "" {
		return formats, nil
	}
	if err := formats.LoadFile(c.BanksFile); err != nil {
		return nil, fmt.Errorf("failed to load bank formats: %w", err)
	}
	return formats, nil
}

// Database opens the database in DataDir
func (c CommonConfig) Database(logger *log.Logger) (*db.DB, error) {
	database, err := db.New(c.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}

// SyncService builds a sync service over database with every bank adapter
// registered and the clock set to the configured timezone
func (c CommonConfig) SyncService(database *db.DB, logger *log.Logger) (*banksync.Service, *bank.Registry, error) {
	now, err := c.Clock()
	if err != nil {
		return nil, nil, err
	}

	registry := adapters.NewRegistry()
	return banksync.NewService(database, registry, logger).WithClock(now), registry, nil
}
