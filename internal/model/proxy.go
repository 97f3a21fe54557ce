// Package model defines shared types for the proxy.
package model

import (
	"context"
	"net/http"
)

// ProxyRequest represents a client request for a target URL.
// Header carries only the caller headers that are forwarded upstream.
type ProxyRequest struct {
	Ctx       context.Context
	TargetURL string
	Header    http.Header
}

// UpstreamResponse is the fully read response of the target URL.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// TransformedResponse is what gets written back to the caller.
type TransformedResponse struct {
	Header http.Header
	Body   []byte
}
