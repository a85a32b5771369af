// Package explorer reads the chain tip and block hashes from the public block
// explorer, an authority independent of the local node.
package explorer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nodewatch/internal/protocol"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var log = logrus.WithField("component", "explorer")

// ErrBlockNotFound is returned when the explorer has no block at a height.
var ErrBlockNotFound = errors.New("explorer: block not found")

// errNotFound is a 404 from any explorer endpoint.
var errNotFound = errors.New("not found")

const (
	defaultRetryMax     = 3
	defaultRetryWaitMin = 200 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
	defaultTimeout      = 10 * time.Second

	maxBodySize = 8 << 20
)

var baseURLs = map[protocol.Network]string{
	protocol.NetworkMainnet:   "https://textexplore.tari.com",
	protocol.NetworkNextnet:   "https://textexplore-nextnet.tari.com",
	protocol.NetworkEsmeralda: "https://textexplore-esmeralda.tari.com",
}

// Client is safe for concurrent use.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

type Option func(*Client)

// WithBaseURL points every network at url instead of the public explorer.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithRetry overrides the retry budget for transient failures.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

func New(opts ...Option) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = defaultRetryMax
	hc.RetryWaitMin = defaultRetryWaitMin
	hc.RetryWaitMax = defaultRetryWaitMax
	hc.HTTPClient.Timeout = defaultTimeout
	hc.Logger = nil
	hc.CheckRetry = retryPolicy

	c := &Client{http: hc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryPolicy retries connection failures and 5xx answers only.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.StatusCode < http.StatusInternalServerError {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// BaseURL returns the explorer root for network.
func (c *Client) BaseURL(network protocol.Network) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	url, ok := baseURLs[network]
	if !ok {
		return "", fmt.Errorf("no explorer for network %q", network)
	}
	return url, nil
}

// GetBestBlock returns the explorer's tip height.
func (c *Client) GetBestBlock(ctx context.Context, network protocol.Network) (uint64, error) {
	body, err := c.get(ctx, network, "/?json")
	if err != nil {
		return 0, err
	}

	res := gjson.GetBytes(body, "tipInfo.metadata.best_block_height")
	height, err := parseUint(res)
	if err != nil {
		return 0, fmt.Errorf("explorer tip height: %w", err)
	}
	return height, nil
}

// GetBlockInfo returns the explorer's block at height.
func (c *Client) GetBlockInfo(ctx context.Context, network protocol.Network, height uint64) (protocol.Block, error) {
	body, err := c.get(ctx, network, "/blocks/"+strconv.FormatUint(height, 10)+"?json")
	if errors.Is(err, errNotFound) {
		return protocol.Block{}, fmt.Errorf("explorer block %d: %w", height, ErrBlockNotFound)
	}
	if err != nil {
		return protocol.Block{}, err
	}

	header := gjson.GetBytes(body, "header")
	if !header.Exists() {
		return protocol.Block{}, fmt.Errorf("explorer block %d: %w", height, ErrBlockNotFound)
	}

	got, err := parseUint(header.Get("height"))
	if err != nil {
		return protocol.Block{}, fmt.Errorf("explorer block %d height: %w", height, err)
	}
	hash, err := parseHash(header.Get("hash"))
	if err != nil {
		return protocol.Block{}, fmt.Errorf("explorer block %d hash: %w", height, err)
	}
	return protocol.Block{Height: got, Hash: hash}, nil
}

func (c *Client) get(ctx context.Context, network protocol.Network, path string) ([]byte, error) {
	base, err := c.BaseURL(network)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build explorer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.WithError(closeErr).Debug("Failed to close explorer response body")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("explorer %s: %w", path, errNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("explorer %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read explorer response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("explorer %s: invalid JSON", path)
	}
	return body, nil
}

// parseUint accepts a JSON number or a decimal string.
func parseUint(res gjson.Result) (uint64, error) {
	switch res.Type {
	case gjson.Number:
		return strconv.ParseUint(res.Raw, 10, 64)
	case gjson.String:
		return strconv.ParseUint(strings.TrimSpace(res.Str), 10, 64)
	}
	return 0, fmt.Errorf("missing or malformed number %q", res.Raw)
}

// parseHash accepts a hex string or an array of byte values and returns
// lowercase hex.
func parseHash(res gjson.Result) (string, error) {
	switch {
	case res.Type == gjson.String:
		raw, err := hex.DecodeString(strings.TrimPrefix(res.Str, "0x"))
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(raw), nil
	case res.IsArray():
		items := res.Array()
		raw := make([]byte, 0, len(items))
		for _, item := range items {
			if item.Type != gjson.Number {
				return "", fmt.Errorf("hash element %q is not a number", item.Raw)
			}
			b, err := strconv.ParseUint(item.Raw, 10, 8)
			if err != nil {
				return "", err
			}
			raw = append(raw, byte(b))
		}
		return hex.EncodeToString(raw), nil
	}
	return "", fmt.Errorf("missing or malformed hash %q", res.Raw)
}
