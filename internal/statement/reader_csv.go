package statement

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvEncodings are the regional 8-bit encodings tried, in order, when a file
// is not valid UTF-8
var csvEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"windows-1254", charmap.Windows1254},
	{"iso-8859-9", charmap.ISO8859_9},
	{"iso-8859-1", charmap.ISO8859_1},
}

func readCSV(path string) (*Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	text, enc, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	rows := make([][]Cell, len(records))
	for i, record := range records {
		row := make([]Cell, len(record))
		for j, field := range record {
			row[j] = TextCell(field)
		}
		rows[i] = row
	}

	return &Sheet{Name: path, Rows: rows, Encoding: enc}, nil
}

// decodeText returns data as UTF-8 text together with the name of the
// encoding it was read as. A decoding is rejected if it produces replacement
// characters.
func decodeText(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	for _, e := range csvEncodings {
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), e.enc.NewDecoder()))
		if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), e.name, nil
	}

	return "", "", fmt.Errorf("could not decode csv with any supported encoding")
}

// detectDelimiter picks the most frequent of comma, semicolon and tab over
// the first few non-empty lines. Statements often open with title lines that
// contain no delimiter at all.
func detectDelimiter(text string) rune {
	var sample []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			sample = append(sample, l)
		}
		if len(sample) == 10 {
			break
		}
	}
	joined := strings.Join(sample, "\n")

	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(joined, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
