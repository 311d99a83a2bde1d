package storage

import (
	"context"
	"errors"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/franchise/kpireport/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Ensure MultiSink implements report.Sink
var _ report.Sink = (MultiSink)(nil)

// MultiSink writes every artifact to each sink in order. The first sink's location is returned;
// a failure in any sink fails the write.
type MultiSink []report.Sink

// NewMultiSink creates a MultiSink, skipping nil sinks
func NewMultiSink(sinks ...report.Sink) MultiSink {
	m := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

// Put implements report.Sink
func (m MultiSink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if len(m) == 0 {
		return "", errors.New("no sinks configured")
	}

	var primary string
	for i, s := range m {
		location, err := s.Put(ctx, name, data, contentType)
		if err != nil {
			return "", err
		}
		if i == 0 {
			primary = location
			continue
		}
		logger.FromContext(ctx).Info("Report artifact replicated",
			zap.String("name", name),
			zap.String("location", location),
		)
	}
	return primary, nil
}
