package types

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents whether money came in or went out
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Source records how a transaction entered the ledger
type Source string

const (
	SourceManual      Source = "manual"
	SourceExcelImport Source = "excel_import"
	SourceBankSync    Source = "bank_sync"
)

// DateLayout is the calendar date format used for records and storage
const DateLayout = "2006-01-02"

// Transaction is the bank-agnostic record produced by both the statement
// importer and the bank API adapters. Amount is never negative; the sign
// lives in Direction.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Direction   Direction
	// ExternalID is the provider's identifier, empty for spreadsheet rows
	ExternalID string
	// SourceRow is the 1-based row in the statement, 0 for API rows
	SourceRow int
	Raw       map[string]any
}

// Record is the plain shape handed to upload layers
type Record struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        Direction       `json:"type"`
	SourceRow   int             `json:"source_row"`
}

// Record converts the transaction to its plain record shape
func (t Transaction) Record() Record {
	return Record{
		Date:        t.Date.Format(DateLayout),
		Description: t.Description,
		Amount:      t.Amount,
		Type:        t.Direction,
		SourceRow:   t.SourceRow,
	}
}

// RowError describes a statement row that could not be turned into a transaction
type RowError struct {
	Row   int               `json:"row"`
	Error string            `json:"error"`
	Data  map[string]string `json:"data"`
}

// ImportResult is the outcome of processing one statement file
type ImportResult struct {
	Transactions   []Transaction `json:"-"`
	Errors         []RowError    `json:"errors"`
	TotalProcessed int           `json:"total_processed"`
	Successful     int           `json:"successful"`
	Failed         int           `json:"failed"`
	// HeaderDetected is false when the header marker was not found and the
	// first row was used instead
	HeaderDetected bool `json:"header_detected"`
}

// Records returns the transactions in their plain record shape
func (r ImportResult) Records() []Record {
	records := make([]Record, 0, len(r.Transactions))
	for _, t := range r.Transactions {
		records = append(records, t.Record())
	}
	return records
}

// MarshalJSON renders transactions as plain records
func (r ImportResult) MarshalJSON() ([]byte, error) {
	type alias ImportResult
	return json.Marshal(struct {
		Transactions []Record `json:"transactions"`
		alias
	}{
		Transactions: r.Records(),
		alias:        alias(r),
	})
}

// ErrDuplicateTransaction is returned by stores when a provider transaction
// was already recorded for the same connection
var ErrDuplicateTransaction = errors.New("transaction already exists")
