package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	cloudstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestBlobStore creates a BlobStore pointed at a test server.
func newTestBlobStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := cloudstorage.NewClient(
		context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := cloudstorage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestWriteUploadsUnderPrefix(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"schema_version":1}`)

	// This handler simulates the GCS JSON API for multipart uploads.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/screener-bucket/o")
		assert.Equal(t, "checkpoints/batch_progress.json", r.URL.Query().Get("name"))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), string(payload))

		fmt.Fprintln(w, `{"name":"checkpoints/batch_progress.json","bucket":"screener-bucket"}`)
	})

	store := newTestBlobStore(t, handler, Config{Bucket: "screener-bucket", Prefix: "/checkpoints/"})
	require.NoError(t, store.Write(context.Background(), "batch_progress.json", payload))
	require.Equal(t, "gs://screener-bucket/checkpoints/batch_progress.json", store.URI("batch_progress.json"))
}

func TestWriteSurfacesServerErrors(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})
	store := newTestBlobStore(t, handler, Config{Bucket: "screener-bucket"})
	require.Error(t, store.Write(context.Background(), "batch_progress.json", []byte("x")))
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	t.Parallel()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Contains(t, r.URL.Path, "/b/screener-bucket/o/batch_progress.json")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"error":{"code":404,"message":"No such object"}}`)
	})
	store := newTestBlobStore(t, handler, Config{Bucket: "screener-bucket"})
	require.NoError(t, store.Delete(context.Background(), "batch_progress.json"))
}

func TestEmptyNameRejected(t *testing.T) {
	t.Parallel()
	store := newTestBlobStore(t, http.NotFoundHandler(), Config{Bucket: "screener-bucket"})
	_, err := store.Read(context.Background(), " ")
	require.Error(t, err)
}
