package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/franchise/kpireport/internal/application/report"
)

// Ensure MemorySink implements report.Sink
var _ report.Sink = (*MemorySink)(nil)

// MemorySink keeps artifacts in memory. Used for dry runs.
type MemorySink struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemorySink creates an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string][]byte)}
}

// Put stores a copy of data under name
func (s *MemorySink) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = append([]byte(nil), data...)
	return "memory://" + name, nil
}

// Get returns a stored artifact
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[name]
	return data, ok
}

// Names returns the stored artifact names in order
func (s *MemorySink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.objects))
	for n := range s.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
