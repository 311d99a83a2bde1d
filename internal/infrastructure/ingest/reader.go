package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// encodingProbe is how much of a file is checked for valid UTF-8 up front
const encodingProbe = 4096

// Row is one non-blank data line of a store export, keyed by lower-case column name
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of a column, empty when the column or value is absent
func (r Row) Get(column string) string {
	return r.Fields[column]
}

// ExportReader reads a store export: a header row followed by one line item per line.
// Column names are matched case-insensitively; values are trimmed.
type ExportReader struct {
	csv     *csv.Reader
	header  []string
	columns map[string]int
	line    int
}

// NewExportReader checks the encoding of r and consumes its header row
func NewExportReader(r io.Reader) (*ExportReader, error) {
	br := bufio.NewReaderSize(r, encodingProbe)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	if err := checkEncoding(br); err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	er := &ExportReader{csv: cr, columns: make(map[string]int)}
	if err := er.readHeader(); err != nil {
		return nil, err
	}
	return er, nil
}

func checkEncoding(br *bufio.Reader) error {
	head, err := br.Peek(encodingProbe)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) == 0 {
		return ErrEmptyFile
	}
	if len(head) == encodingProbe {
		// drop a rune cut in half by the probe boundary
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	if !utf8.Valid(head) {
		return ErrInvalidEncoding
	}
	return nil
}

func (r *ExportReader) readHeader() error {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	r.line = 1

	r.header = make([]string, 0, len(record))
	for i, name := range record {
		name = strings.ToLower(strings.TrimSpace(name))
		r.header = append(r.header, name)
		if _, dup := r.columns[name]; !dup && name != "" {
			r.columns[name] = i
		}
	}
	if len(r.columns) == 0 {
		return ErrMissingHeader
	}
	return nil
}

// Header returns the normalized column names in file order
func (r *ExportReader) Header() []string {
	return r.header
}

// Has reports whether the export has the named column
func (r *ExportReader) Has(column string) bool {
	_, ok := r.columns[column]
	return ok
}

// Require fails with ErrMissingColumns, carrying a RowError for line 1, when any
// of columns is absent.
func (r *ExportReader) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !r.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	rowErr := RowError{
		Row:     1,
		Column:  strings.Join(missing, ", "),
		Code:    ErrCodeMissingColumns,
		Message: "required column missing from header",
	}
	return fmt.Errorf("%w: %w", ErrMissingColumns, rowErr)
}

// Next returns the next non-blank row, or io.EOF after the last one.
// A line that cannot be parsed, or that has more fields than the header, is
// returned as a RowError with ErrCodeMalformedRow; reading may continue after it.
// Short lines leave the missing columns empty.
func (r *ExportReader) Next() (Row, error) {
	for {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			r.line = parseErr.Line
			return Row{}, RowError{
				Row:     parseErr.StartLine,
				Code:    ErrCodeMalformedRow,
				Message: parseErr.Err.Error(),
			}
		}
		if err != nil {
			return Row{}, fmt.Errorf("failed to read line %d: %w", r.line+1, err)
		}
		r.line, _ = r.csv.FieldPos(0)

		if len(record) > len(r.header) {
			return Row{}, RowError{
				Row:     r.line,
				Code:    ErrCodeMalformedRow,
				Message: fmt.Sprintf("expected %d fields, saw %d", len(r.header), len(record)),
			}
		}

		row := Row{Line: r.line, Fields: make(map[string]string, len(r.columns))}
		blank := true
		for name, i := range r.columns {
			if i >= len(record) {
				continue
			}
			v := strings.TrimSpace(record[i])
			if v != "" {
				blank = false
			}
			row.Fields[name] = v
		}
		if !blank {
			return row, nil
		}
	}
}
