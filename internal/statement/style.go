package statement

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// BoldRows reopens a workbook and reports, by 0-based sheet row, whether the
// row's first cell is bold. Only xlsx files carry readable styles.
func BoldRows(path string) (map[int]bool, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".xlsx" {
		return nil, fmt.Errorf("cell styles are not available for %s files", ext)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in workbook")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	bold := make(map[int]bool)
	fonts := make(map[int]bool)
	for i := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		idx, err := f.GetCellStyle(sheets[0], axis)
		if err != nil {
			return nil, fmt.Errorf("failed to read style of %s: %w", axis, err)
		}

		isBold, ok := fonts[idx]
		if !ok {
			style, err := f.GetStyle(idx)
			if err != nil {
				return nil, fmt.Errorf("failed to read style %d: %w", idx, err)
			}
			isBold = style.Font != nil && style.Font.Bold
			fonts[idx] = isBold
		}
		if isBold {
			bold[i] = true
		}
	}

	return bold, nil
}
