package statement

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies which value a Cell carries
type Kind int

const (
	KindBlank Kind = iota
	KindText
	KindNumber
	KindDate
)

// Cell is a single spreadsheet value as surfaced by a sheet reader
type Cell struct {
	Kind   Kind
	Text   string
	Number float64
	Time   time.Time
}

// TextCell returns a text cell, or a blank cell for whitespace-only input
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: KindText, Text: s}
}

func NumberCell(v float64) Cell {
	return Cell{Kind: KindNumber, Number: v}
}

func DateCell(t time.Time) Cell {
	return Cell{Kind: KindDate, Time: t}
}

// IsBlank reports whether the cell holds no value
func (c Cell) IsBlank() bool {
	return c.Kind == KindBlank
}

// String renders the cell the way it is matched against header markers and
// reported in row errors
func (c Cell) String() string {
	switch c.Kind {
	case KindText:
		return c.Text
	case KindNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case KindDate:
		return c.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// cellAt returns the cell at index i, treating short rows as blank-padded
func cellAt(row []Cell, i int) Cell {
	if i < 0 || i >= len(row) {
		return Cell{}
	}
	return row[i]
}
