// Package banksync pulls transactions from bank APIs into the ledger.
package banksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/progress"
	"github.com/lox/bank-statement-sync/internal/types"
)

// CategoryName is the category every synced transaction is filed under
const CategoryName = "Bank Sync"

// DefaultLookback is how far back a sync reaches when no start date is given
const DefaultLookback = 3

// Store is the persistence the sync service needs
type Store interface {
	// GetConnection returns nil and no error when the connection does not exist
	GetConnection(ctx context.Context, id int64) (*bank.Connection, error)
	ListConnections(ctx context.Context) ([]bank.Connection, error)
	FindOrCreateCategory(ctx context.Context, name string) (int64, error)
	FindOrCreateTag(ctx context.Context, name string) (int64, error)
	TransactionExists(ctx context.Context, externalID string, connectionID int64) (bool, error)
	// InsertTransaction returns types.ErrDuplicateTransaction when the
	// external id is already stored for the connection
	InsertTransaction(ctx context.Context, tx types.Transaction, categoryID int64, tagIDs []int64, connectionID int64, source types.Source) error
	RecordSyncStatus(ctx context.Context, connectionID int64, at time.Time, status types.SyncStatus, message string) error
}

// Service syncs bank connections through their registered adapters
type Service struct {
	store    Store
	adapters *bank.Registry
	logger   *log.Logger
	now      func() time.Time
}

// NewService creates a sync service
func NewService(store Store, adapters *bank.Registry, logger *log.Logger) *Service {
	return &Service{
		store:    store,
		adapters: adapters,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for default ranges and sync timestamps
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Sync fetches the connection's transactions between from and to and stores
// the ones not seen before. A nil to means today and a nil from means three
// months before to.
//
// An error is returned only when the connection is missing or inactive;
// every other failure is reported through the result and recorded against
// the connection.
func (s *Service) Sync(ctx context.Context, connectionID int64, from, to *time.Time) (*types.SyncResult, error) {
	conn, err := s.store.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank connection: %w", err)
	}
	if conn == nil {
		return nil, &bank.SyncError{Op: fmt.Sprintf("Bank connection %d not found", connectionID)}
	}
	if !conn.IsActive {
		return nil, &bank.SyncError{Op: fmt.Sprintf("Bank connection %s is not active", conn.BankName)}
	}

	logger := s.logger.With("connection", conn.ID, "bank", conn.BankCode)
	dateFrom, dateTo := s.dateRange(from, to)
	logger.Info("Syncing bank connection", "from", dateFrom.Format(types.DateLayout), "to", dateTo.Format(types.DateLayout))

	result, err := s.sync(ctx, conn, dateFrom, dateTo, logger)
	if err != nil {
		logger.Error("Bank sync failed", "error", err)
		message := err.Error()
		if result == nil {
			result = &types.SyncResult{ErrorCount: 1, Errors: []string{message}}
		} else {
			// interrupted part way; rows already stored stay counted
			result.ErrorCount++
			result.Errors = append(result.Errors, message)
			message = fmt.Sprintf("%s: %s", result.Summary(), message)
		}
		result.Status = types.SyncStatusError

		s.recordStatus(context.WithoutCancel(ctx), conn.ID, result.Status, message, logger)
		return result, nil
	}

	result.Status = result.DeriveStatus()
	s.recordStatus(ctx, conn.ID, result.Status, result.Summary(), logger)

	logger.Info("Bank sync finished",
		"status", result.Status,
		"new", result.NewCount,
		"skipped", result.SkippedCount,
		"errors", result.ErrorCount)
	return result, nil
}

func (s *Service) sync(ctx context.Context, conn *bank.Connection, from, to time.Time, logger *log.Logger) (*types.SyncResult, error) {
	adapter, err := s.adapters.New(conn.BankCode, conn.Credentials(), logger)
	if err != nil {
		return nil, err
	}

	if err := adapter.Authenticate(ctx); err != nil {
		return nil, err
	}
	transactions, err := adapter.FetchTransactions(ctx, from, to)
	if err != nil {
		return nil, err
	}

	categoryID, err := s.store.FindOrCreateCategory(ctx, CategoryName)
	if err != nil {
		return nil, fmt.Errorf("failed to get category %q: %w", CategoryName, err)
	}
	tagID, err := s.store.FindOrCreateTag(ctx, conn.BankName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tag %q: %w", conn.BankName, err)
	}

	result := &types.SyncResult{}
	for _, tx := range transactions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		exists, err := s.store.TransactionExists(ctx, tx.ExternalID, conn.ID)
		if err != nil {
			s.recordError(result, tx, err, logger)
			continue
		}
		if exists {
			result.SkippedCount++
			continue
		}

		err = s.store.InsertTransaction(ctx, tx, categoryID, []int64{tagID}, conn.ID, types.SourceBankSync)
		switch {
		case errors.Is(err, types.ErrDuplicateTransaction):
			result.SkippedCount++
		case err != nil:
			s.recordError(result, tx, err, logger)
		default:
			result.NewCount++
		}
	}

	return result, nil
}

func (s *Service) recordError(result *types.SyncResult, tx types.Transaction, err error, logger *log.Logger) {
	logger.Error("Error processing bank transaction", "external_id", tx.ExternalID, "error", err)
	result.ErrorCount++
	result.Errors = append(result.Errors, err.Error())
}

func (s *Service) recordStatus(ctx context.Context, connectionID int64, status types.SyncStatus, message string, logger *log.Logger) {
	if err := s.store.RecordSyncStatus(ctx, connectionID, s.now().UTC(), status, message); err != nil {
		logger.Error("Failed to record sync status", "error", err)
	}
}

func (s *Service) dateRange(from, to *time.Time) (time.Time, time.Time) {
	var dateTo time.Time
	if to != nil {
		dateTo = truncateDay(*to)
	} else {
		dateTo = truncateDay(s.now())
	}

	if from != nil {
		return truncateDay(*from), dateTo
	}
	return monthsBefore(dateTo, DefaultLookback), dateTo
}

// monthsBefore steps back n calendar months, clamping to the last day of
// the target month (May 31 becomes Feb 29, not Mar 2).
func monthsBefore(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(t.Day(), lastDay)-1)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ConnectionResult pairs a connection with the outcome of its sync
type ConnectionResult struct {
	Connection bank.Connection   `json:"connection"`
	Result     *types.SyncResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// SyncAll syncs every active connection in turn. A failing connection is
// reported in its result and does not stop the others.
func (s *Service) SyncAll(ctx context.Context, from, to *time.Time, p progress.Progress) ([]ConnectionResult, error) {
	connections, err := s.store.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank connections: %w", err)
	}

	var results []ConnectionResult
	for _, conn := range connections {
		if !conn.IsActive {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		p.Describe(fmt.Sprintf("Syncing %s", conn.BankName))
		cr := ConnectionResult{Connection: conn}
		result, err := s.Sync(ctx, conn.ID, from, to)
		if err != nil {
			cr.Error = err.Error()
		} else {
			cr.Result = result
		}
		results = append(results, cr)

		if err := p.Add(1); err != nil {
			s.logger.Warn("Failed to update progress", "error", err)
		}
	}

	return results, nil
}
