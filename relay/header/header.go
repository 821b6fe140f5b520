// Package header builds the request headers the relay sends upstream.
//
// The relay sits between a caller and a streaming chat-completion endpoint:
//
//	Caller --> Relay --> Upstream chat-completion endpoint
//
// Every header is validated before a stream starts, so a malformed credential
// or configured header fails the start call instead of the stream.
package header

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ErrInvalidHeader is returned for a header name or value that cannot be sent.
var ErrInvalidHeader = errors.New("invalid header")

// reserved is the set of request headers the relay owns. Configured extra
// headers may not override them.
var reserved = map[string]struct{}{
	// The bearer credential comes from configuration, never from extras.
	"Authorization": {},

	// The request body is always JSON and the response always SSE.
	"Content-Type": {},
	"Accept":       {},

	// Hop-by-hop and framing headers are managed by Go's http.Transport.
	"Connection":        {},
	"Content-Length":    {},
	"Host":              {},
	"Transfer-Encoding": {},
}

// Handler builds upstream request headers from a fixed set of extras.
type Handler struct {
	extra http.Header
}

// NewHandler validates extra and returns a Handler that adds it to every
// upstream request.
func NewHandler(extra map[string]string) (*Handler, error) {
	h := &Handler{extra: make(http.Header, len(extra))}

	for k, v := range extra {
		name := http.CanonicalHeaderKey(strings.TrimSpace(k))
		if _, ok := reserved[name]; ok {
			return nil, fmt.Errorf("%w: %s is managed by the relay", ErrInvalidHeader, name)
		}
		if err := validate(name, v); err != nil {
			return nil, err
		}
		h.extra.Set(name, v)
	}

	return h, nil
}

// UpstreamRequestHeaders returns the headers for one upstream request. An
// empty apiKey sends no Authorization header.
func (h *Handler) UpstreamRequestHeaders(apiKey string) (http.Header, error) {
	out := h.extra.Clone()
	if out == nil {
		out = make(http.Header)
	}

	out.Set("Content-Type", "application/json")
	out.Set("Accept", "text/event-stream")
	out.Set("Cache-Control", "no-cache")

	if apiKey != "" {
		auth := "Bearer " + apiKey
		if strings.TrimSpace(apiKey) != apiKey || !httpguts.ValidHeaderFieldValue(auth) {
			// The credential itself is never echoed back.
			return nil, fmt.Errorf("%w: malformed API key", ErrInvalidHeader)
		}
		out.Set("Authorization", auth)
	}

	return out, nil
}

// Apply sets headers on req.
func Apply(req *http.Request, headers http.Header) {
	for k, v := range headers {
		req.Header[k] = append([]string(nil), v...)
	}
}

func validate(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidHeader, name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("%w: value for %s", ErrInvalidHeader, name)
	}
	return nil
}
