package ingest

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *ExportReader) []Row {
	t.Helper()
	var rows []Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestNewExportReader(t *testing.T) {
	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		r, err := NewExportReader(strings.NewReader("\xEF\xBB\xBFdate,order_id\n2025-01-01,A"))
		require.NoError(t, err)

		assert.Equal(t, []string{"date", "order_id"}, r.Header())
	})

	t.Run("Header names are trimmed and lower-cased", func(t *testing.T) {
		r, err := NewExportReader(strings.NewReader(" Date , Order_ID\n2025-01-01,A"))
		require.NoError(t, err)

		assert.True(t, r.Has("date"))
		assert.True(t, r.Has("order_id"))
		assert.False(t, r.Has("revenue"))
	})

	t.Run("Empty file", func(t *testing.T) {
		r, err := NewExportReader(strings.NewReader(""))

		assert.ErrorIs(t, err, ErrEmptyFile)
		assert.Nil(t, r)
	})

	t.Run("Invalid encoding", func(t *testing.T) {
		_, err := NewExportReader(strings.NewReader("date,order\n\xff\xfe,1"))

		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("Multi-byte rune at the probe boundary", func(t *testing.T) {
		content := "item\n" + strings.Repeat("a", encodingProbe-len("item\n")-1) + "é\n"

		r, err := NewExportReader(strings.NewReader(content))
		require.NoError(t, err)
		rows := readAll(t, r)
		require.Len(t, rows, 1)
		assert.True(t, strings.HasSuffix(rows[0].Get("item"), "é"))
	})

	t.Run("Blank header", func(t *testing.T) {
		_, err := NewExportReader(strings.NewReader("\n"))

		assert.ErrorIs(t, err, ErrMissingHeader)
	})
}

func TestExportReader_Require(t *testing.T) {
	r, err := NewExportReader(strings.NewReader("date,item\n"))
	require.NoError(t, err)

	assert.NoError(t, r.Require("date"))

	err = r.Require("date", "order_id", "revenue")
	assert.ErrorIs(t, err, ErrMissingColumns)

	var rowErr RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 1, rowErr.Row)
	assert.Equal(t, ErrCodeMissingColumns, rowErr.Code)
	assert.Equal(t, "order_id, revenue", rowErr.Column)
}

func TestExportReader_Next(t *testing.T) {
	csv := "date,order_id,revenue\n" +
		"2025-01-01, A ,1.00\n" +
		",,\n" +
		"\n" +
		"2025-01-02,B\n"
	r, err := NewExportReader(strings.NewReader(csv))
	require.NoError(t, err)

	rows := readAll(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "A", rows[0].Get("order_id"))
	assert.Equal(t, 5, rows[1].Line)
	assert.Equal(t, "", rows[1].Get("revenue"))
	assert.Equal(t, "", rows[1].Get("unknown"))
}

func TestExportReader_MalformedRow(t *testing.T) {
	r, err := NewExportReader(strings.NewReader("date,order_id\n2025-01-01,A,extra\n2025-01-02,B\n"))
	require.NoError(t, err)

	_, err = r.Next()
	var rowErr RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, ErrCodeMalformedRow, rowErr.Code)
	assert.Equal(t, 2, rowErr.Row)

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B", row.Get("order_id"))
	assert.Equal(t, 3, row.Line)
}
