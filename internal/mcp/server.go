package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/bankformat"
	"github.com/lox/bank-statement-sync/internal/banksync"
	"github.com/lox/bank-statement-sync/internal/db"
	"github.com/lox/bank-statement-sync/internal/statement"
	"github.com/lox/bank-statement-sync/internal/types"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultImportCategory is the category imported statements are saved under
const DefaultImportCategory = "Excel Import"

type Server struct {
	db        *db.DB
	formats   *bankformat.Registry
	adapters  *bank.Registry
	processor *statement.Processor
	sync      *banksync.Service
	logger    *log.Logger
}

func New(database *db.DB, formats *bankformat.Registry, adapters *bank.Registry, sync *banksync.Service, logger *log.Logger) *Server {
	return &Server{
		db:        database,
		formats:   formats,
		adapters:  adapters,
		processor: statement.NewProcessor(formats, logger),
		sync:      sync,
		logger:    logger,
	}
}

func (s *Server) newMCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"Bank Statement Sync",
		"1.0.0",
	)

	mcpServer.AddTool(mcp.NewTool("list_banks",
		mcp.WithDescription("List the banks whose statements can be imported and the banks that can be synced over their API"),
	), s.listBanksHandler)

	mcpServer.AddTool(mcp.NewTool("import_statement",
		mcp.WithDescription("Parse a bank statement file (.xlsx, .xls or .csv) into transactions"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the statement file"),
		),
		mcp.WithString("bank",
			mcp.Required(),
			mcp.Description("Bank id of the statement format. Use list_banks to see available banks."),
		),
		mcp.WithString("save",
			mcp.Description("Store the parsed transactions in the ledger (true/false, default: false)"),
		),
		mcp.WithString("category",
			mcp.Description("Category for saved transactions (default: Excel Import)"),
		),
	), s.importStatementHandler)

	mcpServer.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("List bank API connections with the outcome of their last sync"),
	), s.listConnectionsHandler)

	mcpServer.AddTool(mcp.NewTool("sync_connection",
		mcp.WithDescription("Fetch new transactions for a bank connection"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Bank connection id. Use list_connections to see connections."),
		),
		mcp.WithString("from",
			mcp.Description("Start date, YYYY-MM-DD (default: three months before the end date)"),
		),
		mcp.WithString("to",
			mcp.Description("End date, YYYY-MM-DD (default: today)"),
		),
	), s.syncConnectionHandler)

	return mcpServer
}

// Run serves the tools over stdio until the client disconnects
func (s *Server) Run() error {
	if err := server.ServeStdio(s.newMCPServer()); err != nil {
		return err
	}

	return nil
}

func (s *Server) listBanksHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var result strings.Builder

	result.WriteString("Statement formats:\n")
	for _, f := range s.formats.List() {
		fmt.Fprintf(&result, "  %s: %s\n", f.ID, f.DisplayName)
	}

	result.WriteString("\nAPI sync:\n")
	for _, b := range s.adapters.List() {
		fmt.Fprintf(&result, "  %s: %s\n", b.Code, b.Name)
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) importStatementHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := request.Params.Arguments["path"].(string)
	if !ok || path == "" {
		return nil, errors.New("path must be a string")
	}
	bankID, ok := request.Params.Arguments["bank"].(string)
	if !ok || bankID == "" {
		return nil, errors.New("bank must be a string")
	}

	save, err := boolArg(request.Params.Arguments, "save")
	if err != nil {
		return nil, err
	}
	category := DefaultImportCategory
	if v, ok := request.Params.Arguments["category"].(string); ok && v != "" {
		category = v
	}

	result, err := s.processor.Process(ctx, path, bankID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to import statement: %w", err)
	}

	if save && len(result.Transactions) > 0 {
		if _, err := s.db.SaveImported(ctx, result.Transactions, category); err != nil {
			return nil, fmt.Errorf("failed to save transactions: %w", err)
		}
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) listConnectionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	connections, err := s.db.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	if len(connections) == 0 {
		return mcp.NewToolResultText("No bank connections configured\n"), nil
	}

	var result strings.Builder
	for _, c := range connections {
		state := "active"
		if !c.IsActive {
			state = "disabled"
		}
		fmt.Fprintf(&result, "%d: %s (%s, %s)\n", c.ID, c.BankName, c.BankCode, state)
		if c.LastSyncAt != nil {
			fmt.Fprintf(&result, "  Last sync: %s %s - %s\n", c.LastSyncAt.Format(time.RFC3339), c.LastSyncStatus, c.LastSyncMessage)
		}
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) syncConnectionHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var id int64
	switch v := request.Params.Arguments["id"].(type) {
	case int:
		id = int64(v)
	case float64:
		id = int64(v)
	case string:
		var err error
		id, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("id must be a valid integer: %w", err)
		}
	default:
		return nil, errors.New("id must be a number or string")
	}

	from, err := dateArg(request.Params.Arguments, "from")
	if err != nil {
		return nil, err
	}
	to, err := dateArg(request.Params.Arguments, "to")
	if err != nil {
		return nil, err
	}

	result, err := s.sync.Sync(ctx, id, from, to)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Status: %s\n%s\n", result.Status, result.Summary())
	for _, e := range result.DisplayErrors(types.DefaultDisplayErrors) {
		text += fmt.Sprintf("  Error: %s\n", e)
	}

	return mcp.NewToolResultText(text), nil
}

func boolArg(args map[string]interface{}, name string) (bool, error) {
	switch v := args[name].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		if v == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s must be true or false: %w", name, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%s must be a boolean or string", name)
	}
}

func dateArg(args map[string]interface{}, name string) (*time.Time, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return nil, nil
	}
	t, err := time.Parse(types.DateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD): %w", name, err)
	}
	return &t, nil
}
