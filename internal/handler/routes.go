// Package handler maps HTTP routes onto the proxy service.
package handler

import (
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"frame-proxy-go/internal/config"
	"frame-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// The metrics endpoint is registered only when m is non-nil and metrics are
// enabled; the static site only when its directory exists.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)
	e.GET("/proxy", proxy.Handle)

	if m != nil && cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}

	if cfg.Static.Exists() {
		e.Use(echomw.StaticWithConfig(echomw.StaticConfig{
			Skipper: skipOwnRoutes(cfg),
			Root:    cfg.Static.Dir,
			Index:   cfg.Static.Index,
		}))
	}
}

// skipOwnRoutes keeps the static middleware off the proxy's own endpoints.
func skipOwnRoutes(cfg *config.Config) echomw.Skipper {
	return func(c echo.Context) bool {
		p := c.Request().URL.Path
		if p == "/proxy" || strings.HasPrefix(p, "/proxy/") || p == "/healthz" {
			return true
		}
		return cfg.Metrics.Enabled && p == cfg.Metrics.Path
	}
}
