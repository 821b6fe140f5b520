// Package relayclient talks to a running relay server's HTTP API.
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Stream is one live stream as reported by the server.
type Stream struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

type listResponse struct {
	Count   int      `json:"count"`
	Streams []Stream `json:"streams"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client is a relay API client.
type Client struct {
	target string
	http   *http.Client
}

// New returns a client for the relay server at target, e.g.
// "http://localhost:8080".
func New(target string) (*Client, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid relay target: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid relay target %q: scheme must be http or https", target)
	}

	return &Client{
		target: strings.TrimRight(target, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Target returns the server URL.
func (c *Client) Target() string {
	return c.target
}

// ListStreams returns the server's live streams, oldest first.
func (c *Client) ListStreams(ctx context.Context) ([]Stream, error) {
	var body listResponse
	if err := c.do(ctx, http.MethodGet, "/v1/streams", http.StatusOK, &body); err != nil {
		return nil, err
	}
	return body.Streams, nil
}

// CancelStream cancels the stream with id. Unknown ids are not an error.
func (c *Client) CancelStream(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/streams/"+url.PathEscape(id), http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.target+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting relay at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e errorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
