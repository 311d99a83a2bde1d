package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/franchise/kpireport/internal/application/report"
)

// Ensure LocalSink implements report.Sink
var _ report.Sink = (*LocalSink)(nil)

// ErrInvalidName is returned for artifact names that are empty or contain a path
var ErrInvalidName = errors.New("artifact name must be a plain file name")

// LocalSink writes artifacts into a directory, creating it on first use
type LocalSink struct {
	dir string
}

// NewLocalSink creates a LocalSink rooted at dir
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

// Put writes the artifact and returns its absolute path
func (s *LocalSink) Put(ctx context.Context, name string, data []byte, _ string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	target := filepath.Join(s.dir, name)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}

	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	return target, nil
}

// Dir returns the output directory
func (s *LocalSink) Dir() string {
	return s.dir
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
