package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lox/bank-statement-sync/internal/commands"
	"github.com/lox/bank-statement-sync/internal/mcp"
)

type CLI struct {
	commands.CommonConfig
}

func (c *CLI) Run() error {
	logger, err := c.Logger()
	if err != nil {
		return err
	}

	formats, err := c.Formats()
	if err != nil {
		return err
	}

	database, err := c.Database(logger)
	if err != nil {
		return err
	}
	defer database.Close()

	service, adapters, err := c.SyncService(database, logger)
	if err != nil {
		return err
	}

	s := mcp.New(database, formats, adapters, service, logger)
	return s.Run()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bank-mcp-server"),
		kong.Description("MCP server for importing bank statements and syncing bank connections"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
