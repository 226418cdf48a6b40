package statement

import (
	"fmt"
	"strings"

	"github.com/lox/bank-statement-sync/internal/bankformat"
)

// UnknownBankError is returned when a statement is imported for a bank with
// no declared format
type UnknownBankError struct {
	BankID string
}

func (e *UnknownBankError) Error() string {
	return fmt.Sprintf("unknown bank code: %s", e.BankID)
}

func (e *UnknownBankError) Unwrap() error {
	return bankformat.ErrUnknownBank
}

// UnsupportedFormatError is returned for files that are not csv, xlsx or xls
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %q", e.Ext)
}

// MissingColumnsError is returned when required fields could not be bound to
// any column of the sheet
type MissingColumnsError struct {
	Fields  []bankformat.Field
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("required columns not found: %s", strings.Join(names, ", "))
}
