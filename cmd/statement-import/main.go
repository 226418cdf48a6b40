package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bankformat"
	"github.com/lox/bank-statement-sync/internal/commands"
	"github.com/lox/bank-statement-sync/internal/progress"
	"github.com/lox/bank-statement-sync/internal/statement"
	"github.com/lox/bank-statement-sync/internal/types"
	"golang.org/x/sync/errgroup"
)

type CLI struct {
	commands.CommonConfig

	Bank        string            `help:"Bank statement format (yapikredi, kuveytturk or one from --banks-file)" required:"" env:"STATEMENT_BANK"`
	Map         map[string]string `help:"Column to use for a field, overriding the bank's synonyms for that field only; unmapped fields still match by synonym (e.g. date=Valör)" placeholder:"FIELD=COLUMN"`
	Save        bool              `help:"Store the parsed transactions in the ledger" default:"false"`
	Category    string            `help:"Category for saved transactions" default:"Excel Import"`
	Concurrency int               `help:"Number of files to parse at once" default:"4"`
	NoProgress  bool              `help:"Disable progress bar" default:"false"`
	Output      string            `help:"Output format" default:"summary" enum:"summary,json"`
	Files       []string          `arg:"" help:"Statement files (.xlsx, .xls, .csv)" type:"existingfile"`
}

type fileResult struct {
	File   string              `json:"file"`
	Result *types.ImportResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
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
	if _, err := formats.Get(c.Bank); err != nil {
		return err
	}

	mapping, err := parseMapping(c.Map)
	if err != nil {
		return err
	}

	processCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	processor := statement.NewProcessor(formats, logger)
	results := make([]fileResult, len(c.Files))

	bar := progress.New(!c.NoProgress && c.Output == "summary", len(c.Files), "Parsing statements")

	// Files are independent; each is still processed row by row
	g, gctx := errgroup.WithContext(processCtx)
	g.SetLimit(max(c.Concurrency, 1))
	for i, file := range c.Files {
		g.Go(func() error {
			results[i] = fileResult{File: file}

			result, err := processor.Process(gctx, file, c.Bank, mapping)
			if err != nil {
				logger.Error("Failed to process statement", "file", file, "error", err)
				results[i].Error = err.Error()
			} else {
				results[i].Result = result
			}

			if err := bar.Add(1); err != nil {
				logger.Warn("Failed to update progress", "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	bar.Close()

	if c.Save {
		if err := c.save(processCtx, logger, results); err != nil {
			return err
		}
	}

	return c.print(results)
}

func (c *CLI) save(ctx context.Context, logger *log.Logger, results []fileResult) error {
	database, err := c.Database(logger)
	if err != nil {
		return err
	}
	defer database.Close()

	for _, r := range results {
		if r.Result == nil || len(r.Result.Transactions) == 0 {
			continue
		}
		n, err := database.SaveImported(ctx, r.Result.Transactions, c.Category)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", r.File, err)
		}
		logger.Info("Saved transactions", "file", r.File, "count", n)
	}
	return nil
}

func (c *CLI) print(results []fileResult) error {
	if c.Output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	failed := 0
	for _, r := range results {
		name := filepath.Base(r.File)
		if r.Error != "" {
			failed++
			fmt.Printf("%s: %s\n", name, r.Error)
			continue
		}

		res := r.Result
		fmt.Printf("%s: %d rows, %d transactions, %d errors\n", name, res.TotalProcessed, res.Successful, res.Failed)
		if !res.HeaderDetected {
			fmt.Printf("  Header marker not found, first row used as header\n")
		}
		for _, e := range res.Errors {
			fmt.Printf("  Row %d: %s\n", e.Row, e.Error)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be processed", failed, len(results))
	}
	return nil
}

func parseMapping(m map[string]string) (map[bankformat.Field]string, error) {
	if len(m) == 0 {
		return nil, nil
	}

	mapping := make(map[bankformat.Field]string, len(m))
	for k, v := range m {
		field := bankformat.Field(k)
		switch field {
		case bankformat.FieldDate, bankformat.FieldDescription, bankformat.FieldAmount:
			mapping[field] = v
		default:
			return nil, fmt.Errorf("unknown field %q in --map (expected date, description or amount)", k)
		}
	}
	return mapping, nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("statement-import"),
		kong.Description("Parse Turkish bank statement exports into normalized transactions"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
