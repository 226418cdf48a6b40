package statement

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		cell     Cell
		layout   string
		expected time.Time
	}{
		{"preferred layout", TextCell("15/03/2024"), "2/1/2006", day(2024, 3, 15)},
		{"preferred layout without padding", TextCell("5/3/2024"), "2/1/2006", day(2024, 3, 5)},
		{"dotted fallback", TextCell("15.03.2024"), "2/1/2006", day(2024, 3, 15)},
		{"iso fallback", TextCell("2024-03-15"), "", day(2024, 3, 15)},
		{"dashed fallback", TextCell("15-03-2024"), "", day(2024, 3, 15)},
		{"two digit year with dots", TextCell("15.03.24"), "", day(2024, 3, 15)},
		{"two digit year with slashes", TextCell("15/03/24"), "", day(2024, 3, 15)},
		{"serial as text", TextCell("45292"), "", day(2024, 1, 1)},
		{"serial as number", NumberCell(45292), "", day(2024, 1, 1)},
		{"serial with time of day", NumberCell(45292.75), "", day(2024, 1, 1)},
		{"native date keeps its day", DateCell(time.Date(2024, 1, 3, 14, 30, 0, 0, time.UTC)), "", day(2024, 1, 3)},
		{"surrounding whitespace", TextCell(" 01/02/2024 "), "2/1/2006", day(2024, 2, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, ok, err := ParseDate(tt.cell, tt.layout)
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, tt.expected.Equal(date), "expected %s, got %s", tt.expected, date)
		})
	}
}

func TestParseDateBlank(t *testing.T) {
	for _, c := range []Cell{{}, TextCell(""), TextCell("  "), TextCell("NaN")} {
		_, ok, err := ParseDate(c, "2/1/2006")
		assert.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestParseDateIsIdempotent(t *testing.T) {
	first, ok, err := ParseDate(TextCell("03/01/2024"), "2/1/2006")
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := ParseDate(DateCell(first), "2/1/2006")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Equal(second))
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, s := range []string{"not-a-date", "32/13/2024", "1234", "Kart No: 5555"} {
		t.Run(s, func(t *testing.T) {
			_, ok, err := ParseDate(TextCell(s), "2/1/2006")
			require.Error(t, err)
			assert.False(t, ok)

			var dateErr *DateParseError
			require.True(t, errors.As(err, &dateErr))
			assert.Equal(t, s, dateErr.Value)
			assert.Contains(t, err.Error(), "could not parse date")
		})
	}
}
