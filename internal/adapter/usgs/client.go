// Package usgs fetches the USGS FDSN event service CSV catalog.
package usgs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Client downloads and parses the earthquake catalog. It implements
// pipeline.EventSource.
//
// Repeated fetches of the same catalog URL use ETag conditional requests:
// when the feed has not changed the server answers 304 and the previously
// parsed events are reused. This matters in interval mode, where the feed
// updates every few minutes but most polls see identical data.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger

	cache        *etagCache
	cacheCounter *prometheus.CounterVec // optional; labels: result={hit,miss}
}

// NewClient creates a catalog client. cacheCounter may be nil.
func NewClient(url string, timeout time.Duration, cacheCounter *prometheus.CounterVec, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:       logger,
		cache:        &etagCache{},
		cacheCounter: cacheCounter,
	}
}

// FetchEvents downloads the catalog and returns one parsed event per row.
func (c *Client) FetchEvents(ctx context.Context) ([]domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	if etag := c.cache.tag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to parse
	case http.StatusNotModified:
		c.countCache("hit")
		c.logger.Debug("catalog unchanged, using cached events", "url", c.url)
		return c.cache.events(), nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	events, err := domain.ParseCatalog(resp.Body)
	if err != nil {
		return nil, err
	}

	c.countCache("miss")
	c.cache.store(resp.Header.Get("ETag"), events)
	return events, nil
}

func (c *Client) countCache(result string) {
	if c.cacheCounter != nil {
		c.cacheCounter.WithLabelValues(result).Inc()
	}
}
