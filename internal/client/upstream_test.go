package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"frame-proxy-go/internal/config"
	"frame-proxy-go/internal/metrics"
)

func newTestClient(timeout int, maxBody int64, m *metrics.Metrics) *UpstreamClient {
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			TimeoutSeconds:  timeout,
			IdleConnections: 10,
			BodyMaxBytes:    maxBody,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUpstreamClient(cfg, logger, m)
}

func TestUpstreamClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if got := r.Header.Get("Accept-Language"); got != "de-DE" {
			t.Errorf("Accept-Language = %q, want %q", got, "de-DE")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Frame-Options", "DENY")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("<head></head>"))
	}))
	defer srv.Close()

	c := newTestClient(10, 1024, nil)

	resp, err := c.Fetch(context.Background(), srv.URL+"/page", http.Header{"Accept-Language": {"de-DE"}})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusTeapot)
	}
	if string(resp.Body) != "<head></head>" {
		t.Errorf("body = %q, want %q", resp.Body, "<head></head>")
	}
	// The client returns headers verbatim; filtering happens in rewrite.
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", resp.Header.Get("X-Frame-Options"), "DENY")
	}
}

func TestUpstreamClient_Fetch_NilHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(10, 0, nil)

	resp, err := c.Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q, want %q", resp.Body, "ok")
	}
}

func TestUpstreamClient_Fetch_Error(t *testing.T) {
	m := metrics.New()
	c := newTestClient(1, 1024, m)

	_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/nonexistent", http.Header{})
	if err == nil {
		t.Fatal("Fetch() expected error for unreachable host, got nil")
	}
	if !strings.HasPrefix(err.Error(), "upstream request: ") {
		t.Errorf("error = %q, want upstream request prefix", err)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "frame_proxy_upstream_errors_total" {
			if v := f.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Errorf("upstream errors = %v, want 1", v)
			}
			return
		}
	}
	t.Error("expected frame_proxy_upstream_errors_total in gathered metrics")
}

func TestUpstreamClient_Fetch_InvalidURL(t *testing.T) {
	c := newTestClient(1, 1024, nil)

	tests := []string{"not a url", "/relative/path", "://missing-scheme"}
	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			if _, err := c.Fetch(context.Background(), u, http.Header{}); err == nil {
				t.Fatalf("Fetch(%q) expected error, got nil", u)
			}
		})
	}
}

func TestUpstreamClient_Fetch_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	c := newTestClient(10, 32, nil)

	_, err := c.Fetch(context.Background(), srv.URL, http.Header{})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("Fetch() error = %v, want ErrBodyTooLarge", err)
	}
}

func TestUpstreamClient_Fetch_BodyAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 32)))
	}))
	defer srv.Close()

	c := newTestClient(10, 32, nil)

	resp, err := c.Fetch(context.Background(), srv.URL, http.Header{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Body) != 32 {
		t.Errorf("body length = %d, want 32", len(resp.Body))
	}
}

func TestUpstreamClient_Fetch_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	c := newTestClient(1, 1024, nil)

	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL, http.Header{})
	if err == nil {
		t.Fatal("Fetch() expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Fetch() took %v, want it bounded by the 1s timeout", elapsed)
	}
}

func TestUpstreamClient_Fetch_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(30, 1024, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, srv.URL+"/slow", http.Header{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}
}
