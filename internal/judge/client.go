package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// Client dispatches test case batches to the judge backend and waits for
// their terminal results.
type Client interface {
	// SubmitBatch sends the batch and returns one opaque token per item,
	// in the same order as the items.
	SubmitBatch(ctx context.Context, items []BatchItem) ([]string, error)

	// AwaitResults polls the backend until every token has a terminal
	// status. It fails with a timeout error if any case is still queued
	// or running after the configured number of attempts. No partial
	// results are returned.
	AwaitResults(ctx context.Context, tokens []string) ([]Result, error)
}

// ClientOptions configures the HTTP judge client.
type ClientOptions struct {
	// BaseURL is the judge backend root, e.g. "https://judge0.example.com".
	BaseURL string

	// APIKey is sent on every request when set.
	APIKey string

	// APIKeyHeader names the header carrying APIKey.
	// Default: "X-Auth-Token".
	APIKeyHeader string

	// PollAttempts bounds how many times AwaitResults asks the backend
	// before giving up. Default: 10.
	PollAttempts int

	// PollInterval is the delay between polling attempts. Default: 1s.
	PollInterval time.Duration

	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client
}

func (o *ClientOptions) setDefaults() {
	if o.APIKeyHeader == "" {
		o.APIKeyHeader = "X-Auth-Token"
	}
	if o.PollAttempts <= 0 {
		o.PollAttempts = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

// HTTPClient implements Client against a Judge0-compatible REST API.
type HTTPClient struct {
	opts ClientOptions
}

// NewHTTPClient creates a judge client for the given backend.
func NewHTTPClient(opts ClientOptions) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("judge base url is required")
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.setDefaults()
	return &HTTPClient{opts: opts}, nil
}

type submitBatchRequest struct {
	Submissions []BatchItem `json:"submissions"`
}

type tokenItem struct {
	Token string `json:"token"`
}

type batchResultsResponse struct {
	Submissions []Result `json:"submissions"`
}

// SubmitBatch sends all items in one request and returns their tokens.
func (c *HTTPClient) SubmitBatch(ctx context.Context, items []BatchItem) ([]string, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("batch is empty")
	}

	body, err := json.Marshal(submitBatchRequest{Submissions: items})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.InternalServerError, "marshal judge batch failed")
	}

	endpoint := c.opts.BaseURL + "/submissions/batch?base64_encoded=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.InternalServerError, "build judge request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.JudgeUnavailable, "judge backend unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, pkgerrors.Newf(pkgerrors.JudgeUnavailable,
			"judge batch submit returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var tokens []tokenItem
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.JudgeUnavailable, "decode judge tokens failed")
	}
	if len(tokens) != len(items) {
		return nil, pkgerrors.Newf(pkgerrors.JudgeUnavailable,
			"judge returned %d tokens for %d items", len(tokens), len(items))
	}

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Token == "" {
			return nil, pkgerrors.New(pkgerrors.JudgeUnavailable).WithMessage("judge returned an empty token")
		}
		out = append(out, t.Token)
	}
	return out, nil
}

// AwaitResults polls until every case is terminal or attempts run out.
func (c *HTTPClient) AwaitResults(ctx context.Context, tokens []string) ([]Result, error) {
	if len(tokens) == 0 {
		return nil, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("no tokens to await")
	}

	endpoint := fmt.Sprintf("%s/submissions/batch?tokens=%s&base64_encoded=false&fields=token,status,time,memory,stdout,stderr,compile_output",
		c.opts.BaseURL, url.QueryEscape(strings.Join(tokens, ",")))

	for attempt := 1; attempt <= c.opts.PollAttempts; attempt++ {
		results, pending, err := c.fetchResults(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		// A short batch must not pass for terminal: with zero pending a
		// missing case would otherwise count as passed downstream.
		if len(results) != len(tokens) {
			return nil, pkgerrors.Newf(pkgerrors.JudgeUnavailable,
				"judge returned %d results for %d tokens", len(results), len(tokens))
		}
		if pending == 0 {
			return results, nil
		}
		logger.Debug(ctx, "judge results not terminal yet",
			zap.Int("attempt", attempt),
			zap.Int("pending", pending),
			zap.Int("total", len(tokens)))

		if attempt == c.opts.PollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, pkgerrors.Wrapf(ctx.Err(), pkgerrors.JudgeTimeout, "await judge results canceled")
		case <-time.After(c.opts.PollInterval):
		}
	}

	return nil, pkgerrors.Newf(pkgerrors.JudgeTimeout,
		"judge results not terminal after %d attempts", c.opts.PollAttempts)
}

func (c *HTTPClient) fetchResults(ctx context.Context, endpoint string) ([]Result, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, pkgerrors.Wrapf(err, pkgerrors.InternalServerError, "build judge request failed")
	}
	c.setAuth(req)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, pkgerrors.Wrapf(err, pkgerrors.JudgeUnavailable, "judge backend unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, 0, pkgerrors.Newf(pkgerrors.JudgeUnavailable,
			"judge batch fetch returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed batchResultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, pkgerrors.Wrapf(err, pkgerrors.JudgeUnavailable, "decode judge results failed")
	}

	pending := 0
	for _, result := range parsed.Submissions {
		if !result.Status.Terminal() {
			pending++
		}
	}
	return parsed.Submissions, pending, nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.opts.APIKey != "" {
		req.Header.Set(c.opts.APIKeyHeader, c.opts.APIKey)
	}
}

var _ Client = (*HTTPClient)(nil)
