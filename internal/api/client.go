package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"config-watch/internal/log"
	"config-watch/internal/store"
)

const (
	defaultReadRetries  = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
	maxErrorBody        = 4 << 10
)

// ErrRejected is returned when the backend answers success=false.
var ErrRejected = errors.New("request rejected by backend")

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Client talks to the backend's request/response API.
//
// Reads (config list, stats) retry on connection errors. Intents never
// retry: the operator decides whether to try again.
type Client struct {
	baseURL string
	reads   *retryablehttp.Client
	intents *retryablehttp.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		reads:   newRetryableClient(defaultReadRetries, timeout),
		intents: newRetryableClient(0, timeout),
	}
}

func newRetryableClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = defaultRetryWaitMin
	client.RetryWaitMax = defaultRetryWaitMax
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	client.CheckRetry = connectionErrorsOnly
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// connectionErrorsOnly retries when no response arrived at all; any HTTP
// reply, including 5xx, is handed back to the caller.
func connectionErrorsOnly(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	return err != nil, nil
}

type ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type fetchRequest struct {
	Source string `json:"source"`
}

type configsResponse struct {
	Configs []store.ConfigRecord `json:"configs"`
	Total   int                  `json:"total"`
}

// FetchConfigs asks the backend to rediscover configs. A nil error only
// means the request was accepted.
func (c *Client) FetchConfigs(ctx context.Context, source string) error {
	return c.sendIntent(ctx, http.MethodPost, "/configs/fetch", fetchRequest{Source: source})
}

// TestAll asks the backend to health-check every config.
func (c *Client) TestAll(ctx context.Context) error {
	return c.sendIntent(ctx, http.MethodPost, "/configs/test", nil)
}

// TestConfig asks the backend to health-check one config.
func (c *Client) TestConfig(ctx context.Context, id store.ID) error {
	return c.sendIntent(ctx, http.MethodGet, "/configs/"+url.PathEscape(id.String())+"/test", nil)
}

func (c *Client) ListConfigs(ctx context.Context, limit int) ([]store.ConfigRecord, error) {
	path := "/configs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp configsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	if resp.Configs == nil {
		resp.Configs = []store.ConfigRecord{}
	}
	return resp.Configs, nil
}

func (c *Client) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	if err := c.get(ctx, "/stats", &stats); err != nil {
		return store.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, c.reads, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) sendIntent(ctx context.Context, method, path string, body any) error {
	resp, err := c.do(ctx, c.intents, method, path, body)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if err := checkStatus(resp); err != nil {
		return err
	}

	var reply ack
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if !reply.Success {
		if reply.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, reply.Error)
		}
		return ErrRejected
	}
	return nil
}

func (c *Client) do(ctx context.Context, client *retryablehttp.Client, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Str("path", path).Msg("Backend request failed")
		return nil, err
	}
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Backend request")
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close response body")
	}
}
