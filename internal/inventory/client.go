// Package inventory looks up a participant's cosmetic inventory from an
// external HTTP service. Results are opaque to the world.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotFound = errors.New("inventory: wallet not found")

const maxBody = 64 * 1024

type Config struct {
	// BaseURL is joined with the wallet: GET {BaseURL}/{wallet}.
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	base       string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("inventory: empty base url")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("inventory: base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		base:       base,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Profile fetches the inventory document for wallet. The body must be a JSON
// object or array; anything else is an error.
func (c *Client) Profile(ctx context.Context, wallet string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+url.PathEscape(wallet), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	if c.token != "" {
		req.Header.Set("authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inventory: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) > maxBody {
		return nil, fmt.Errorf("inventory: response larger than %d bytes", maxBody)
	}
	trimmed := strings.TrimSpace(string(body))
	if !json.Valid([]byte(trimmed)) || (!strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[")) {
		return nil, fmt.Errorf("inventory: response is not a JSON document")
	}
	return json.RawMessage(trimmed), nil
}
