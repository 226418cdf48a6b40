package statement

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bankformat"
	"github.com/lox/bank-statement-sync/internal/types"
)

// Processor turns bank statement exports into normalized transactions
type Processor struct {
	formats *bankformat.Registry
	logger  *log.Logger
}

// NewProcessor creates a processor using the given bank formats
func NewProcessor(formats *bankformat.Registry, logger *log.Logger) *Processor {
	return &Processor{
		formats: formats,
		logger:  logger,
	}
}

// rowOutcome is the result of one data row: a transaction, an error, or
// neither when the row is skipped
type rowOutcome struct {
	tx  *types.Transaction
	err *types.RowError
}

// boundColumns holds the sheet positions of the required fields
type boundColumns struct {
	date, description, amount int
}

// Process reads the statement at path using the format declared for bankID.
// mapping optionally binds fields to column names and takes precedence over
// the bank's synonyms. Configuration problems are returned as errors before
// any row is read; problems with individual rows are reported in the result.
func (p *Processor) Process(ctx context.Context, path, bankID string, mapping map[bankformat.Field]string) (*types.ImportResult, error) {
	format, err := p.formats.Get(bankID)
	if err != nil {
		return nil, &UnknownBankError{BankID: bankID}
	}

	read, err := readerFor(path)
	if err != nil {
		return nil, err
	}

	sheet, err := read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement %s: %w", filepath.Base(path), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header, body, headerIndex, found := DetectHeader(sheet.Rows, format.HeaderMarker)
	if !found {
		p.logger.Warn("Header marker not found, using first row as header",
			"file", filepath.Base(path), "marker", format.HeaderMarker)
	}

	var bold map[int]bool
	if format.UseBoldForIncome {
		bold, err = BoldRows(path)
		if err != nil {
			p.logger.Warn("Could not inspect cell styles, falling back to amount signs", "file", filepath.Base(path), "error", err)
		}
	}

	// sheet row of body[0], used to line up style marks with data rows
	firstRow := headerIndex + 1
	if skip := format.SkipInitialRows; skip > 0 {
		if skip > len(body) {
			skip = len(body)
		}
		p.logger.Info("Skipping initial data rows", "bank", format.ID, "rows", skip)
		body = body[skip:]
		firstRow += skip
	}

	cols, err := p.bindColumns(header, format, mapping)
	if err != nil {
		return nil, err
	}

	result := &types.ImportResult{
		Transactions:   make([]types.Transaction, 0, len(body)),
		Errors:         make([]types.RowError, 0),
		TotalProcessed: len(body),
		HeaderDetected: found,
	}

	for i, row := range body {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := p.processRow(row, i+1, header, cols, format, bold[firstRow+i])
		switch {
		case out.err != nil:
			result.Errors = append(result.Errors, *out.err)
		case out.tx != nil:
			result.Transactions = append(result.Transactions, *out.tx)
		}
	}

	result.Successful = len(result.Transactions)
	result.Failed = len(result.Errors)

	p.logger.Debug("Processed statement",
		"file", filepath.Base(path),
		"bank", format.ID,
		"rows", result.TotalProcessed,
		"successful", result.Successful,
		"failed", result.Failed)

	return result, nil
}

// ProcessReader spools an uploaded statement to a temporary file and
// processes it. filename supplies the extension.
func (p *Processor) ProcessReader(ctx context.Context, r io.Reader, filename, bankID string, mapping map[bankformat.Field]string) (*types.ImportResult, error) {
	if _, err := p.formats.Get(bankID); err != nil {
		return nil, &UnknownBankError{BankID: bankID}
	}
	if _, err := readerFor(filename); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "statement-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	return p.Process(ctx, tmp.Name(), bankID, mapping)
}

func (p *Processor) bindColumns(header []string, format bankformat.Config, mapping map[bankformat.Field]string) (boundColumns, error) {
	names := MapColumns(header, format.Columns)
	for field, col := range mapping {
		if col != "" {
			names[field] = col
		}
	}

	index := make(map[bankformat.Field]int, len(bankformat.RequiredFields))
	var missing []bankformat.Field
	for _, field := range bankformat.RequiredFields {
		name, ok := names[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		idx := columnIndex(header, name)
		if idx < 0 {
			missing = append(missing, field)
			continue
		}
		index[field] = idx
	}

	if len(missing) > 0 {
		return boundColumns{}, &MissingColumnsError{Fields: missing, Columns: header}
	}

	return boundColumns{
		date:        index[bankformat.FieldDate],
		description: index[bankformat.FieldDescription],
		amount:      index[bankformat.FieldAmount],
	}, nil
}

func (p *Processor) processRow(row []Cell, n int, header []string, cols boundColumns, format bankformat.Config, bold bool) rowOutcome {
	date, ok, err := ParseDate(cellAt(row, cols.date), format.Layout())
	if err != nil {
		return rowOutcome{err: &types.RowError{Row: n, Error: err.Error(), Data: rowData(header, row)}}
	}
	if !ok {
		return rowOutcome{}
	}

	amount, direction := ParseAmount(cellAt(row, cols.amount), p.logger)
	if bold {
		direction = types.DirectionIncome
	}
	if amount.IsZero() {
		p.logger.Debug("Skipping zero amount row", "row", n)
		return rowOutcome{}
	}

	return rowOutcome{tx: &types.Transaction{
		Date:        date,
		Description: strings.TrimSpace(cellAt(row, cols.description).String()),
		Amount:      amount,
		Direction:   direction,
		SourceRow:   n,
	}}
}

// rowData renders a row keyed by column name for error reports
func rowData(header []string, row []Cell) map[string]string {
	data := make(map[string]string, len(row))
	for i, c := range row {
		name := ""
		if i < len(header) {
			name = header[i]
		}
		if name == "" {
			name = fmt.Sprintf("column %d", i+1)
		}
		if _, exists := data[name]; !exists {
			data[name] = c.String()
		}
	}
	return data
}
