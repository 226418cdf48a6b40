package statement

import (
	"fmt"
	"strings"
	"time"

	"github.com/extrame/xls"
)

// xlsCharset is the codepage of non-unicode strings in legacy Turkish exports
const xlsCharset = "cp1254"

// readXLS reads legacy BIFF workbooks. The reader surfaces every value as
// text; dates come back in RFC 3339 form and are converted here.
func readXLS(path string) (*Sheet, error) {
	wb, err := xls.Open(path, xlsCharset)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("no sheets found in workbook")
	}

	rows := make([][]Cell, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}

		cells := make([]Cell, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, xlsCell(row.Col(j)))
		}
		rows = append(rows, cells)
	}

	return &Sheet{Name: sheet.Name, Rows: rows}, nil
}

func xlsCell(value string) Cell {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return DateCell(t)
	}
	return TextCell(value)
}
