// Package client provides the outbound HTTP client used to fetch target URLs.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"frame-proxy-go/internal/config"
	"frame-proxy-go/internal/metrics"
	"frame-proxy-go/internal/model"
)

// ErrBodyTooLarge is returned when the target body exceeds upstream.body_max_bytes.
var ErrBodyTooLarge = errors.New("upstream body too large")

// UpstreamClient fetches target documents.
type UpstreamClient struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxBodySize int64
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:      logger.With("component", "upstream_client"),
		metrics:     m,
		maxBodySize: cfg.Upstream.BodyMaxBytes,
	}
}

// Fetch issues a GET for targetURL with the given headers and reads the whole body.
// The context and the client timeout both bound the request, body read included.
func (c *UpstreamClient) Fetch(ctx context.Context, targetURL string, header http.Header) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return nil, c.fail(time.Now(), fmt.Errorf("build upstream request: %w", err))
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("upstream request", "url", targetURL)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(start, fmt.Errorf("upstream request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := c.readBody(resp.Body)
	if err != nil {
		return nil, c.fail(start, err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		c.metrics.UpstreamResponses.WithLabelValues(metrics.StatusClass(resp.StatusCode)).Inc()
	}

	c.logger.Debug("upstream response",
		"url", targetURL,
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// readBody reads r fully, failing once more than maxBodySize bytes arrive.
// A non-positive maxBodySize disables the limit.
func (c *UpstreamClient) readBody(r io.Reader) ([]byte, error) {
	if c.maxBodySize <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upstream body: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, c.maxBodySize)
	}
	return body, nil
}

func (c *UpstreamClient) fail(start time.Time, err error) error {
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		c.metrics.UpstreamErrors.Inc()
	}
	return err
}
