// Package directory looks up author identifiers against the PLC
// directory, with an in-process TTL cache and retry (spec.md §4.4).
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/metrics"
)

const cacheTTL = time.Hour

// Handles is the (primary handle, full handle list) pair the
// directory returns for a single identifier.
type Handles struct {
	Primary string
	All     []string
}

// Client looks up identifiers against the PLC directory. Safe for
// concurrent use by multiple persistence workers.
type Client struct {
	endpoint string
	http     *retryablehttp.Client
	cache    *expirable.LRU[string, Handles]
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// plcResponse is the subset of the PLC directory's DID-document
// response this client cares about.
type plcResponse struct {
	AlsoKnownAs []string `json:"alsoKnownAs"`
}

// New builds a directory client. endpoint is the PLC directory base
// URL (e.g. "https://plc.directory"); identifiers are appended as
// "/{id}" per spec.md §6.
func New(endpoint string, log *zap.Logger, m *metrics.Metrics) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.RetryMax = retryForever
	rc.Logger = nil // spec.md §4.3: retries are silent except for our own structured log
	rc.HTTPClient.Timeout = 10 * time.Second

	return &Client{
		endpoint: endpoint,
		http:     rc,
		cache:    expirable.NewLRU[string, Handles](0, nil, cacheTTL),
		log:      log,
		metrics:  m,
	}
}

// retryForever stands in for "unbounded attempts" (spec.md §4.3).
// go-retryablehttp takes a finite RetryMax, so this client instead
// bounds itself by ctx: Lookup's caller controls how long to wait.
const retryForever = 1 << 30

// Lookup returns the cached handle pair for id if present and
// unexpired, otherwise queries the PLC directory and caches the
// result for one hour. A non-2xx or malformed response is a
// recoverable error; go-retryablehttp has already retried transport
// and 5xx failures internally before this returns.
func (c *Client) Lookup(ctx context.Context, id string) (Handles, error) {
	if h, ok := c.cache.Get(id); ok {
		c.metrics.DirectoryCacheHits.Inc()
		return h, nil
	}
	c.metrics.DirectoryCacheMisses.Inc()

	url := c.endpoint + "/" + id
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Handles{}, fmt.Errorf("directory: build request for %q: %w", id, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Handles{}, fmt.Errorf("directory: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Handles{}, fmt.Errorf("directory: %s returned %d: %s", url, resp.StatusCode, string(body))
	}

	var parsed plcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Handles{}, fmt.Errorf("directory: decode response for %q: %w", id, err)
	}
	if len(parsed.AlsoKnownAs) == 0 {
		return Handles{}, fmt.Errorf("directory: %q has no alsoKnownAs entries", id)
	}

	h := Handles{Primary: parsed.AlsoKnownAs[0], All: parsed.AlsoKnownAs}
	c.cache.Add(id, h)
	c.log.Debug("directory lookup resolved", zap.String("did", id), zap.String("handle", h.Primary))
	return h, nil
}

// Close releases the client's idle HTTP connections. Non-blocking by
// design (spec.md §9 Open Question): a synchronous close can stall
// shutdown behind a slow in-flight request, so this only tears down
// connections that are already idle.
func (c *Client) Close() {
	c.http.HTTPClient.CloseIdleConnections()
}
