// Package transport is the thin HTTP layer shared by the updater, the
// aggregator client, and the snapshot fetcher.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TokenFromEnv returns the optional bearer token for authenticated mirrors.
func TokenFromEnv() string {
	return strings.TrimSpace(os.Getenv("HELIOS_API_TOKEN"))
}

// UserAgent identifies this agent version to release servers.
func UserAgent(version string) string {
	return fmt.Sprintf("helios/%s", version)
}

// Client wraps http.Client with the agent's defaults.
type Client struct {
	http      *http.Client
	userAgent string
}

// New builds a Client. Snapshot transfers run long, so no overall request
// timeout is set here; callers bound requests with contexts.
func New(version string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		userAgent: UserAgent(version),
	}
}

// Get issues a GET with the agent headers.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, url, -1)
}

// GetRange issues a GET resuming from a byte offset. The caller must check
// the response status: a server that ignores Range answers 200 with the
// full body instead of 206.
func (c *Client) GetRange(ctx context.Context, url string, offset int64) (*http.Response, error) {
	return c.do(ctx, url, offset)
}

func (c *Client) do(ctx context.Context, url string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if tok := TokenFromEnv(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	return c.http.Do(req)
}

// GetJSON fetches url and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
