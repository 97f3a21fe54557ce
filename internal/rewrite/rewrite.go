// Package rewrite turns a fetched document into one that can be embedded in
// an iframe: it drops frame-blocking headers and injects a <base> element so
// relative references resolve against the original target.
package rewrite

import (
	"net/http"
	"strings"

	"frame-proxy-go/internal/model"
)

// Injection positions reported by InjectBase.
const (
	PositionHead      = "head"
	PositionHeadUpper = "HEAD"
	PositionPrepend   = "prepend"
)

// cspPrefix matches the legacy X-Content-Security-Policy family,
// including report-only variants.
const cspPrefix = "x-content-security-policy"

// framingHeaders describe the rewritten body's transfer, not the content,
// and are recomputed by the server when the body is written.
var framingHeaders = map[string]bool{
	"Content-Length":      true,
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// attrEscaper escapes the characters that can terminate a double-quoted
// attribute or open a tag. '&' is kept so well-formed URLs pass unchanged.
var attrEscaper = strings.NewReplacer(`"`, "&quot;", "<", "&lt;", ">", "&gt;")

// Result is the outcome of Transform.
type Result struct {
	Response *model.TransformedResponse
	Position string
	Stripped []string
}

// IsFrameBlocking reports whether a response header name stops browsers from
// rendering the document inside a frame. Matching is case-insensitive.
func IsFrameBlocking(name string) bool {
	return FrameBlockingFamily(name) != ""
}

// FrameBlockingFamily returns the lower-case blocklist entry name matches, or
// empty string when the header is allowed.
func FrameBlockingFamily(name string) string {
	lower := strings.ToLower(name)
	switch {
	case lower == "x-frame-options":
		return "x-frame-options"
	case lower == "content-security-policy":
		return "content-security-policy"
	case strings.HasPrefix(lower, cspPrefix):
		return cspPrefix
	}
	return ""
}

// FilterHeaders copies src without frame-blocking and framing headers.
// Set-Cookie is passed through untouched, keeping the origin's domain and path.
// The returned slice lists the names of the frame-blocking headers removed.
func FilterHeaders(src http.Header) (http.Header, []string) {
	dst := make(http.Header, len(src))
	var stripped []string
	for key, vals := range src {
		if IsFrameBlocking(key) {
			stripped = append(stripped, key)
			continue
		}
		if framingHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst, stripped
}

// BaseTag returns the <base> element pointing at targetURL.
func BaseTag(targetURL string) string {
	return `<base href="` + attrEscaper.Replace(targetURL) + `">`
}

// InjectBase inserts a base tag for targetURL right after the first <head>,
// else right after the first <HEAD>, else at the very start of body.
// Existing base tags are left alone, so running it twice yields two tags.
func InjectBase(body, targetURL string) (string, string) {
	tag := BaseTag(targetURL)
	if strings.Contains(body, "<head>") {
		return strings.Replace(body, "<head>", "<head>"+tag, 1), PositionHead
	}
	if strings.Contains(body, "<HEAD>") {
		return strings.Replace(body, "<HEAD>", "<HEAD>"+tag, 1), PositionHeadUpper
	}
	return tag + body, PositionPrepend
}

// Transform applies header filtering and base injection to an upstream response.
func Transform(resp *model.UpstreamResponse, targetURL string) *Result {
	header, stripped := FilterHeaders(resp.Header)
	body, pos := InjectBase(string(resp.Body), targetURL)
	return &Result{
		Response: &model.TransformedResponse{
			Header: header,
			Body:   []byte(body),
		},
		Position: pos,
		Stripped: stripped,
	}
}
