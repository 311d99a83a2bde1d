package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/franchise/kpireport/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3Sink_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3Sink(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3Sink(ctx, &config.StorageConfig{AccessKey: "k", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("secret without access key returns error", func(t *testing.T) {
		_, err := NewS3Sink(ctx, &config.StorageConfig{Bucket: "b", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("access key without secret returns error", func(t *testing.T) {
		_, err := NewS3Sink(ctx, &config.StorageConfig{Bucket: "b", AccessKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates sink", func(t *testing.T) {
		sink, err := NewS3Sink(ctx, &config.StorageConfig{
			Bucket:       "reports",
			AccessKey:    "k",
			SecretKey:    "s",
			Endpoint:     "localhost:9000",
			UsePathStyle: true,
			KeyPrefix:    "/franchise/weekly/",
		}, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "reports", sink.Bucket())
		assert.Equal(t, "franchise/weekly/r.xlsx", sink.Key("r.xlsx"))
	})

	t.Run("no prefix keeps name", func(t *testing.T) {
		sink, err := NewS3Sink(ctx, &config.StorageConfig{Bucket: "reports", AccessKey: "k", SecretKey: "s"})
		require.NoError(t, err)
		assert.Equal(t, "r.xlsx", sink.Key("r.xlsx"))
	})
}

// fakeS3 records requests against a path-style S3 endpoint
type fakeS3 struct {
	mu           sync.Mutex
	requests     []string
	contentTypes map[string]string
	bodies       map[string]int
	bucketExists bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/reports":
		if !f.bucketExists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && r.URL.Path == "/reports":
		f.bucketExists = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.contentTypes[r.URL.Path] = r.Header.Get("Content-Type")
		f.bodies[r.URL.Path] = len(body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newFakeS3Sink(t *testing.T, fake *fakeS3) *S3Sink {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	sink, err := NewS3Sink(context.Background(), &config.StorageConfig{
		Bucket:       "reports",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		Endpoint:     server.URL,
		UsePathStyle: true,
		KeyPrefix:    "weekly",
	})
	require.NoError(t, err)
	return sink
}

func TestS3Sink_Put(t *testing.T) {
	fake := &fakeS3{contentTypes: map[string]string{}, bodies: map[string]int{}}
	sink := newFakeS3Sink(t, fake)

	location, err := sink.Put(context.Background(), "report.xlsx", []byte("workbook"), "application/test")
	require.NoError(t, err)

	assert.Equal(t, "s3://reports/weekly/report.xlsx", location)
	assert.Equal(t, "application/test", fake.contentTypes["/reports/weekly/report.xlsx"])
	assert.Contains(t, fake.requests, "PUT /reports/weekly/report.xlsx")
}

func TestS3Sink_Put_InvalidName(t *testing.T) {
	fake := &fakeS3{contentTypes: map[string]string{}, bodies: map[string]int{}}
	sink := newFakeS3Sink(t, fake)

	_, err := sink.Put(context.Background(), "../escape.xlsx", []byte("x"), "application/test")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Empty(t, fake.requests)
}

func TestS3Sink_EnsureBucket(t *testing.T) {
	t.Run("creates missing bucket", func(t *testing.T) {
		fake := &fakeS3{contentTypes: map[string]string{}, bodies: map[string]int{}}
		sink := newFakeS3Sink(t, fake)

		require.NoError(t, sink.EnsureBucket(context.Background()))
		assert.True(t, fake.bucketExists)
		assert.Equal(t, []string{"HEAD /reports", "PUT /reports"}, fake.requests)
	})

	t.Run("existing bucket is left alone", func(t *testing.T) {
		fake := &fakeS3{contentTypes: map[string]string{}, bodies: map[string]int{}, bucketExists: true}
		sink := newFakeS3Sink(t, fake)

		require.NoError(t, sink.EnsureBucket(context.Background()))
		assert.Equal(t, []string{"HEAD /reports"}, fake.requests)
	})
}
