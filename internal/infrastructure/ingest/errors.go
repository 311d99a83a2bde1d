package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Ingest error codes
const (
	ErrCodeMissingColumns = "ERR_INGEST_MISSING_COLUMNS"
	ErrCodeRequiredField  = "ERR_INGEST_REQUIRED_FIELD"
	ErrCodeInvalidDate    = "ERR_INGEST_INVALID_DATE"
	ErrCodeInvalidRevenue = "ERR_INGEST_INVALID_REVENUE"
	ErrCodeMalformedRow   = "ERR_INGEST_MALFORMED_ROW"
)

var (
	// ErrEmptyFile is returned when the CSV file is empty
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrInvalidEncoding is returned when the file is not UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrMissingHeader is returned when the CSV file has no header row
	ErrMissingHeader = errors.New("CSV file missing header row")

	// ErrMissingColumns is returned when a required column is absent
	ErrMissingColumns = errors.New("CSV file missing required columns")

	// ErrNoInputFiles is returned when the data directory holds no CSV files
	ErrNoInputFiles = errors.New("no CSV files found")

	// ErrInvalidRows is returned when a file contains rows that cannot be normalized
	ErrInvalidRows = errors.New("CSV file contains invalid rows")
)

// RowError represents an error in a specific row
type RowError struct {
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Row     int    `json:"row" yaml:"row"`
	Column  string `json:"column,omitempty" yaml:"column,omitempty"`
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Value   string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "row %d", e.Row)
	if e.Column != "" {
		fmt.Fprintf(&sb, ", column '%s'", e.Column)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}

// ErrorCollection collects row errors up to a limit while counting all of them
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 20
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, maxErrors),
		maxErrors: maxErrors,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddRequiredError adds a required field error
func (ec *ErrorCollection) AddRequiredError(row int, column string) {
	ec.Add(RowError{
		Row:     row,
		Column:  column,
		Code:    ErrCodeRequiredField,
		Message: fmt.Sprintf("field '%s' is required", column),
	})
}

// AddTypeError adds a value that could not be converted
func (ec *ErrorCollection) AddTypeError(row int, column, code, expected, value string) {
	ec.Add(RowError{
		Row:     row,
		Column:  column,
		Code:    code,
		Message: fmt.Sprintf("expected %s", expected),
		Value:   value,
	})
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// Err returns nil without errors, otherwise an error wrapping ErrInvalidRows
// that lists the collected row errors.
func (ec *ErrorCollection) Err() error {
	if !ec.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidRows, ec.String())
}

// String returns a string representation of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d error(s) found", ec.totalCount)
	if ec.IsTruncated() {
		fmt.Fprintf(&sb, " (showing first %d)", ec.maxErrors)
	}
	sb.WriteString(":\n")
	for _, err := range ec.errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}

	return sb.String()
}
