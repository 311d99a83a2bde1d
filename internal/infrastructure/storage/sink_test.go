package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSink_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	sink := NewLocalSink(dir)

	location, err := sink.Put(context.Background(), "report.xlsx", []byte("data"), "application/test")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(location))
	assert.Equal(t, "report.xlsx", filepath.Base(location))
	content, err := os.ReadFile(filepath.Join(dir, "report.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
	assert.Equal(t, dir, sink.Dir())
}

func TestLocalSink_Put_Errors(t *testing.T) {
	sink := NewLocalSink(t.TempDir())

	for _, name := range []string{"", "..", "sub/report.xlsx", `sub\report.xlsx`} {
		_, err := sink.Put(context.Background(), name, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sink.Put(ctx, "report.xlsx", []byte("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("unavailable")
}

func TestMultiSink_Put(t *testing.T) {
	first := NewMemorySink()
	second := NewMemorySink()
	sink := NewMultiSink(first, nil, second)
	require.Len(t, sink, 2)

	location, err := sink.Put(context.Background(), "report.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "memory://report.pdf", location)
	data, ok := second.Get("report.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, []string{"report.pdf"}, first.Names())
}

func TestMultiSink_Errors(t *testing.T) {
	_, err := NewMultiSink().Put(context.Background(), "a.xlsx", nil, "")
	assert.Error(t, err)

	_, err = NewMultiSink(NewMemorySink(), failingSink{}).Put(context.Background(), "a.xlsx", nil, "")
	assert.ErrorContains(t, err, "unavailable")
}

func TestMemorySink_CopiesData(t *testing.T) {
	sink := NewMemorySink()
	data := []byte("abc")

	_, err := sink.Put(context.Background(), "a.csv", data, "text/csv")
	require.NoError(t, err)
	data[0] = 'z'

	got, ok := sink.Get("a.csv")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))

	_, ok = sink.Get("missing")
	assert.False(t, ok)
}
