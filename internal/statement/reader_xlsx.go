package statement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxSheet struct {
	f         *excelize.File
	name      string
	dateStyle map[int]bool
}

func readXLSX(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in workbook")
	}

	x := &xlsxSheet{f: f, name: sheets[0], dateStyle: make(map[int]bool)}

	raw, err := f.GetRows(x.name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", x.name, err)
	}

	rows := make([][]Cell, len(raw))
	for i, values := range raw {
		row := make([]Cell, len(values))
		for j, v := range values {
			row[j] = x.cell(i, j, v)
		}
		rows[i] = row
	}

	return &Sheet{Name: x.name, Rows: rows}, nil
}

// cell converts a raw stored value into a typed cell. Numbers carrying a
// date number format become dates.
func (x *xlsxSheet) cell(row, col int, raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return TextCell(raw)
	}

	cellType, err := x.f.GetCellType(x.name, axis)
	if err == nil && (cellType == excelize.CellTypeSharedString || cellType == excelize.CellTypeInlineString) {
		return TextCell(raw)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return TextCell(raw)
	}

	if x.isDate(axis) {
		if t, err := excelize.ExcelDateToTime(v, false); err == nil {
			return DateCell(t)
		}
	}
	return NumberCell(v)
}

func (x *xlsxSheet) isDate(axis string) bool {
	idx, err := x.f.GetCellStyle(x.name, axis)
	if err != nil {
		return false
	}
	if isDate, ok := x.dateStyle[idx]; ok {
		return isDate
	}

	style, err := x.f.GetStyle(idx)
	isDate := err == nil && isDateFormat(style)
	x.dateStyle[idx] = isDate
	return isDate
}

var (
	numFmtLiterals = regexp.MustCompile(`\[[^\]]*\]|"[^"]*"`)
	numFmtDateCode = regexp.MustCompile(`[dmy]`)
)

// isDateFormat reports whether a cell style renders numbers as dates
func isDateFormat(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	switch {
	case style.NumFmt >= 14 && style.NumFmt <= 22:
		return true
	case style.NumFmt >= 45 && style.NumFmt <= 47:
		return true
	}
	if style.CustomNumFmt == nil {
		return false
	}
	code := numFmtLiterals.ReplaceAllString(strings.ToLower(*style.CustomNumFmt), "")
	return numFmtDateCode.MatchString(code)
}
