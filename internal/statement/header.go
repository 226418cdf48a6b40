package statement

import (
	"strings"
	"unicode"

	"github.com/lox/bank-statement-sync/internal/bankformat"
)

// DetectHeader finds the first row containing marker in any of its cells and
// splits the sheet there: that row's values become the column names and the
// rows below it become the body. Rows above it are discarded. When no row
// matches, the first row is used as the header and found is false.
func DetectHeader(rows [][]Cell, marker string) (header []string, body [][]Cell, index int, found bool) {
	if len(rows) == 0 {
		return nil, nil, -1, false
	}

	index = 0
	for i, row := range rows {
		if rowContains(row, marker) {
			index, found = i, true
			break
		}
	}

	header = make([]string, len(rows[index]))
	for i, c := range rows[index] {
		header[i] = strings.TrimSpace(c.String())
	}
	return header, rows[index+1:], index, found
}

func rowContains(row []Cell, marker string) bool {
	for _, c := range row {
		if strings.Contains(c.String(), marker) {
			return true
		}
	}
	return false
}

// MapColumns binds each canonical field to the first column matching one of
// its synonyms. Synonyms are tried in order and compared case-insensitively.
// Fields without a match are absent from the result.
func MapColumns(columns []string, synonyms map[bankformat.Field][]string) map[bankformat.Field]string {
	mapping := make(map[bankformat.Field]string)
	for field, names := range synonyms {
	names:
		for _, name := range names {
			for _, col := range columns {
				if sameColumn(col, name) {
					mapping[field] = col
					break names
				}
			}
		}
	}
	return mapping
}

func sameColumn(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if strings.EqualFold(a, b) {
		return true
	}
	// İ and I do not fold to i under the default case mapping
	return strings.ToLowerSpecial(unicode.TurkishCase, a) == strings.ToLowerSpecial(unicode.TurkishCase, b)
}

// columnIndex returns the position of the first column with the given name
func columnIndex(columns []string, name string) int {
	for i, col := range columns {
		if col == name {
			return i
		}
	}
	for i, col := range columns {
		if sameColumn(col, name) {
			return i
		}
	}
	return -1
}
