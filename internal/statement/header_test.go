package statement

import (
	"testing"

	"github.com/lox/bank-statement-sync/internal/bankformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textRow(values ...string) []Cell {
	row := make([]Cell, len(values))
	for i, v := range values {
		row[i] = TextCell(v)
	}
	return row
}

func TestDetectHeader(t *testing.T) {
	rows := [][]Cell{
		textRow("YAPI KREDİ BANKASI"),
		textRow("Hesap No", "1234"),
		textRow(""),
		textRow("İşlem Tarihi", "İşlemler", "Tutar"),
		textRow("01/01/2024", "Market", "-500,00"),
		textRow("02/01/2024", "Maaş", "+5.000,00"),
	}

	header, body, index, found := DetectHeader(rows, "İşlem Tarihi")
	require.True(t, found)
	assert.Equal(t, 3, index)
	assert.Equal(t, []string{"İşlem Tarihi", "İşlemler", "Tutar"}, header)
	require.Len(t, body, 2)
	assert.Equal(t, "Market", body[0][1].String())
}

func TestDetectHeaderMatchesSubstring(t *testing.T) {
	rows := [][]Cell{
		textRow("Rapor"),
		textRow("  Tarih ", "Açıklama", "Tutar"),
		textRow("2024-01-01", "Market", "500"),
	}

	header, body, _, found := DetectHeader(rows, "Tarih")
	require.True(t, found)
	assert.Equal(t, "Tarih", header[0], "header names are trimmed")
	assert.Len(t, body, 1)
}

func TestDetectHeaderFallsBackToFirstRow(t *testing.T) {
	rows := [][]Cell{
		textRow("Date", "Description", "Amount"),
		textRow("2024-01-01", "Market", "500"),
	}

	header, body, index, found := DetectHeader(rows, "İşlem Tarihi")
	assert.False(t, found)
	assert.Equal(t, 0, index)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, header)
	assert.Len(t, body, 1)
}

func TestDetectHeaderEmptySheet(t *testing.T) {
	header, body, _, found := DetectHeader(nil, "Tarih")
	assert.False(t, found)
	assert.Nil(t, header)
	assert.Nil(t, body)
}

func TestMapColumns(t *testing.T) {
	synonyms := map[bankformat.Field][]string{
		bankformat.FieldDate:        {"İşlem Tarihi", "Tarih"},
		bankformat.FieldDescription: {"İşlemler", "Açıklama"},
		bankformat.FieldAmount:      {"Tutar", "Miktar"},
	}

	t.Run("first synonym wins", func(t *testing.T) {
		mapping := MapColumns([]string{"Tarih", "İşlem Tarihi", "Açıklama", "Tutar"}, synonyms)
		assert.Equal(t, "İşlem Tarihi", mapping[bankformat.FieldDate])
		assert.Equal(t, "Açıklama", mapping[bankformat.FieldDescription])
		assert.Equal(t, "Tutar", mapping[bankformat.FieldAmount])
	})

	t.Run("case insensitive", func(t *testing.T) {
		mapping := MapColumns([]string{"İŞLEM TARİHİ", "açıklama", "TUTAR"}, synonyms)
		assert.Equal(t, "İŞLEM TARİHİ", mapping[bankformat.FieldDate])
		assert.Equal(t, "açıklama", mapping[bankformat.FieldDescription])
		assert.Equal(t, "TUTAR", mapping[bankformat.FieldAmount])
	})

	t.Run("unmatched fields are absent", func(t *testing.T) {
		mapping := MapColumns([]string{"Tarih", "Açıklama", "Bakiye"}, synonyms)
		_, ok := mapping[bankformat.FieldAmount]
		assert.False(t, ok)
		assert.Len(t, mapping, 2)
	})
}
