package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/bank/adapters"
	"github.com/lox/bank-statement-sync/internal/commands"
	"github.com/lox/bank-statement-sync/internal/progress"
	"github.com/lox/bank-statement-sync/internal/types"
)

type CLI struct {
	commands.CommonConfig

	Banks       BanksCmd       `cmd:"" help:"List banks that can be synced over their API"`
	Connections ConnectionsCmd `cmd:"" help:"Manage bank connections"`
	Sync        SyncCmd        `cmd:"" help:"Fetch new transactions for one or all connections"`
	Test        TestCmd        `cmd:"" help:"Check that a connection's credentials are accepted"`
}

type BanksCmd struct{}

func (c *BanksCmd) Run(common *commands.CommonConfig) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, b := range adapters.NewRegistry().List() {
		fmt.Fprintf(w, "%s\t%s\n", b.Code, b.Name)
	}
	return w.Flush()
}

type ConnectionsCmd struct {
	Add     ConnectionsAddCmd     `cmd:"" help:"Add a bank connection"`
	List    ConnectionsListCmd    `cmd:"" default:"1" help:"List bank connections"`
	Disable ConnectionsDisableCmd `cmd:"" help:"Disable a bank connection"`
	Enable  ConnectionsEnableCmd  `cmd:"" help:"Re-enable a bank connection"`
}

type ConnectionsAddCmd struct {
	Bank         string `help:"Bank code (see 'bank-sync banks')" required:""`
	ClientID     string `help:"API client id" required:"" env:"BANK_CLIENT_ID"`
	ClientSecret string `help:"API client secret" required:"" env:"BANK_CLIENT_SECRET"`
	AccountID    string `help:"Account to sync (default: the bank's default account)"`
	Verify       bool   `help:"Check the credentials before saving" default:"true" negatable:""`
}

func (c *ConnectionsAddCmd) Run(common *commands.CommonConfig) error {
	logger, err := common.Logger()
	if err != nil {
		return err
	}

	registry := adapters.NewRegistry()
	var name string
	for _, b := range registry.List() {
		if b.Code == c.Bank {
			name = b.Name
		}
	}

	conn := bank.Connection{
		BankCode:     c.Bank,
		BankName:     name,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		AccountID:    c.AccountID,
		IsActive:     true,
	}

	adapter, err := registry.New(c.Bank, conn.Credentials(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if c.Verify && !adapter.TestConnection(ctx) {
		return fmt.Errorf("%s rejected the credentials", adapter.Name())
	}

	database, err := common.Database(logger)
	if err != nil {
		return err
	}
	defer database.Close()

	id, err := database.AddConnection(ctx, conn)
	if err != nil {
		return err
	}

	fmt.Printf("Added connection %d (%s)\n", id, conn.BankName)
	return nil
}

type ConnectionsListCmd struct {
	JSON bool `help:"Print connections as JSON" default:"false"`
}

func (c *ConnectionsListCmd) Run(common *commands.CommonConfig) error {
	logger, err := common.Logger()
	if err != nil {
		return err
	}

	database, err := common.Database(logger)
	if err != nil {
		return err
	}
	defer database.Close()

	connections, err := database.ListConnections(context.Background())
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(connections)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBANK\tACTIVE\tLAST SYNC\tSTATUS\tMESSAGE")
	for _, conn := range connections {
		lastSync := "never"
		if conn.LastSyncAt != nil {
			lastSync = conn.LastSyncAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%s\n", conn.ID, conn.BankName, conn.IsActive, lastSync, conn.LastSyncStatus, conn.LastSyncMessage)
	}
	return w.Flush()
}

type ConnectionsDisableCmd struct {
	ID int64 `arg:"" help:"Connection id"`
}

func (c *ConnectionsDisableCmd) Run(common *commands.CommonConfig) error {
	return setActive(common, c.ID, false)
}

type ConnectionsEnableCmd struct {
	ID int64 `arg:"" help:"Connection id"`
}

func (c *ConnectionsEnableCmd) Run(common *commands.CommonConfig) error {
	return setActive(common, c.ID, true)
}

func setActive(common *commands.CommonConfig, id int64, active bool) error {
	logger, err := common.Logger()
	if err != nil {
		return err
	}

	database, err := common.Database(logger)
	if err != nil {
		return err
	}
	defer database.Close()

	return database.SetConnectionActive(context.Background(), id, active)
}

type SyncCmd struct {
	ID         int64  `arg:"" optional:"" help:"Connection id"`
	All        bool   `help:"Sync every active connection"`
	From       string `help:"Start date, YYYY-MM-DD (default: three months before --to)"`
	To         string `help:"End date, YYYY-MM-DD (default: today)"`
	NoProgress bool   `help:"Disable progress bar" default:"false"`
}

func (c *SyncCmd) Run(common *commands.CommonConfig) error {
	if !c.All && c.ID == 0 {
		return fmt.Errorf("a connection id or --all is required")
	}

	from, err := parseDate(c.From)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseDate(c.To)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	logger, err := common.Logger()
	if err != nil {
		return err
	}

	database, err := common.Database(logger)
	if err != nil {
		return err
	}
	defer database.Close()

	service, _, err := common.SyncService(database, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if !c.All {
		result, err := service.Sync(ctx, c.ID, from, to)
		if err != nil {
			return err
		}
		printResult(fmt.Sprintf("Connection %d", c.ID), result)
		if result.Status == types.SyncStatusError {
			return fmt.Errorf("sync failed")
		}
		return nil
	}

	connections, err := database.ListConnections(ctx)
	if err != nil {
		return err
	}
	active := 0
	for _, conn := range connections {
		if conn.IsActive {
			active++
		}
	}
	bar := progress.New(!c.NoProgress, active, "Syncing")

	results, err := service.SyncAll(ctx, from, to, bar)
	bar.Close()
	if err != nil {
		return err
	}

	for _, r := range results {
		label := fmt.Sprintf("Connection %d (%s)", r.Connection.ID, r.Connection.BankName)
		if r.Error != "" {
			fmt.Printf("%s: %s\n", label, r.Error)
			continue
		}
		printResult(label, r.Result)
	}
	return nil
}

func printResult(label string, result *types.SyncResult) {
	fmt.Printf("%s: %s (%s)\n", label, result.Summary(), result.Status)
	for _, e := range result.DisplayErrors(types.DefaultDisplayErrors) {
		fmt.Printf("  %s\n", e)
	}
	if hidden := len(result.Errors) - types.DefaultDisplayErrors; hidden > 0 {
		fmt.Printf("  ... and %d more\n", hidden)
	}
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type TestCmd struct {
	ID int64 `arg:"" help:"Connection id"`
}

func (c *TestCmd) Run(common *commands.CommonConfig) error {
	logger, err := common.Logger()
	if err != nil {
		return err
	}

	database, err := common.Database(logger)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := database.GetConnection(ctx, c.ID)
	if err != nil {
		return err
	}
	if conn == nil {
		return fmt.Errorf("bank connection %d not found", c.ID)
	}

	adapter, err := adapters.NewRegistry().New(conn.BankCode, conn.Credentials(), logger)
	if err != nil {
		return err
	}

	if !adapter.TestConnection(ctx) {
		return fmt.Errorf("%s rejected the credentials for connection %d", adapter.Name(), conn.ID)
	}

	fmt.Printf("Connection %d (%s) OK\n", conn.ID, conn.BankName)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bank-sync"),
		kong.Description("Sync transactions from bank APIs into the ledger"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli.CommonConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
