package statement

import (
	"path/filepath"
	"strings"
)

// Sheet is the first worksheet of a statement file, read without assuming
// which row holds the header
type Sheet struct {
	Name string
	Rows [][]Cell
	// Encoding is the text encoding a csv file was decoded with
	Encoding string
}

type sheetReader func(path string) (*Sheet, error)

var sheetReaders = map[string]sheetReader{
	".csv":  readCSV,
	".xlsx": readXLSX,
	".xls":  readXLS,
}

func readerFor(path string) (sheetReader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := sheetReaders[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: ext}
	}
	return read, nil
}

// ReadSheet reads the first sheet of a csv, xlsx or xls file
func ReadSheet(path string) (*Sheet, error) {
	read, err := readerFor(path)
	if err != nil {
		return nil, err
	}
	return read(path)
}
