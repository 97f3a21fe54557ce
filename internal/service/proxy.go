// Package service implements fetching a target URL and rewriting it for embedding.
package service

import (
	"errors"
	"log/slog"
	"net/http"

	"frame-proxy-go/internal/client"
	"frame-proxy-go/internal/metrics"
	"frame-proxy-go/internal/model"
	"frame-proxy-go/internal/rewrite"
)

// ErrMissingURL is returned when the request carries no target URL.
var ErrMissingURL = errors.New(`"url" query parameter is missing`)

// UpstreamError reports a failed fetch of the target URL.
type UpstreamError struct {
	URL string
	Err error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

// forwardableRequestHeaders are the only caller headers sent to the target.
var forwardableRequestHeaders = []string{
	"User-Agent",
	"Accept",
	"Accept-Language",
}

// ProxyService relays a request to its target and transforms the result.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyService creates a ProxyService. The metrics parameter may be nil.
func NewProxyService(c *client.UpstreamClient, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
	}
}

// Relay fetches pr.TargetURL and returns the embeddable response.
// Errors are either ErrMissingURL or *UpstreamError.
func (s *ProxyService) Relay(pr *model.ProxyRequest) (*model.TransformedResponse, error) {
	if pr.TargetURL == "" {
		return nil, ErrMissingURL
	}

	s.logger.Info("proxying request", "url", pr.TargetURL)

	header := FilterRequestHeaders(pr.Header)

	resp, err := s.client.Fetch(pr.Ctx, pr.TargetURL, header)
	if err != nil {
		return nil, &UpstreamError{URL: pr.TargetURL, Err: err}
	}

	res := rewrite.Transform(resp, pr.TargetURL)

	s.logger.Debug("transformed response",
		"url", pr.TargetURL,
		"upstream_status", resp.StatusCode,
		"base_position", res.Position,
		"stripped", res.Stripped,
	)

	if s.metrics != nil {
		s.metrics.BaseInjections.WithLabelValues(res.Position).Inc()
		for _, name := range res.Stripped {
			s.metrics.StrippedHeaders.WithLabelValues(rewrite.FrameBlockingFamily(name)).Inc()
		}
	}

	return res.Response, nil
}

// FilterRequestHeaders keeps only User-Agent, Accept and Accept-Language from src.
func FilterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[key] = append([]string(nil), vals...)
		}
	}
	return dst
}
