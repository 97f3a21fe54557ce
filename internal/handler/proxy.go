package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"frame-proxy-go/internal/model"
	"frame-proxy-go/internal/service"
)

// MissingURLMessage is the body returned when the url query parameter is absent.
const MissingURLMessage = `ERROR: "url" query parameter is missing.`

// ProxyHandler serves GET /proxy?url=<target>.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle fetches the target URL and writes the embeddable document back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr := &model.ProxyRequest{
		Ctx:       req.Context(),
		TargetURL: c.QueryParam("url"),
		Header:    req.Header,
	}

	resp, err := h.service.Relay(pr)
	if err != nil {
		return h.mapError(c, err)
	}

	dst := c.Response().Header()
	for key, vals := range resp.Header {
		dst[key] = vals
	}
	if dst.Get(echo.HeaderContentType) == "" {
		dst.Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	}

	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Error("writing response body",
			"err", err,
			"url", pr.TargetURL,
		)
	}

	return nil
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrMissingURL) {
		h.logger.Warn("rejected request", "err", err)
		return c.String(http.StatusBadRequest, MissingURLMessage)
	}

	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		h.logger.Error("proxy error",
			"err", ue.Err,
			"url", ue.URL,
		)
		return c.String(http.StatusInternalServerError, "Server error: "+ue.Err.Error())
	}

	h.logger.Error("proxy error", "err", err)
	return c.String(http.StatusInternalServerError, "Server error: "+err.Error())
}
