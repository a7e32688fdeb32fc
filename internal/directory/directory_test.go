package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/metrics"
)

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestLookupParsesAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"alsoKnownAs": ["at://alice.bsky.social", "at://alice-alias.test"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop(), testMetrics())
	got, err := c.Lookup(context.Background(), "did:plc:alice")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Primary != "at://alice.bsky.social" {
		t.Fatalf("Primary = %q", got.Primary)
	}
	if len(got.All) != 2 {
		t.Fatalf("All = %v", got.All)
	}

	// Second lookup for the same id must hit the cache, not the server.
	if _, err := c.Lookup(context.Background(), "did:plc:alice"); err != nil {
		t.Fatalf("second Lookup() error = %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected exactly one upstream request, got %d", hits)
	}
}

func TestLookupNonRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop(), testMetrics())
	if _, err := c.Lookup(context.Background(), "did:plc:missing"); err == nil {
		t.Fatalf("expected error for 404 response")
	}
}

func TestLookupEmptyAlsoKnownAs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"alsoKnownAs": []}`))
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop(), testMetrics())
	if _, err := c.Lookup(context.Background(), "did:plc:empty"); err == nil {
		t.Fatalf("expected error for empty alsoKnownAs")
	}
}
