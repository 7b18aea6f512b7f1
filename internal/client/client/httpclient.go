package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/buildlog/internal/api"
	"github.com/dmitrijs2005/buildlog/internal/common"
)

const maxErrorBody = 4 << 10

type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	timeout time.Duration
}

// NewHTTPClient returns a client for the backend at baseURL. timeout bounds
// every single request; zero means no per-request limit.
func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		timeout: timeout,
	}
}

func (c *HTTPClient) Categories(ctx context.Context) ([]api.Category, error) {
	var out []api.Category
	if err := c.do(ctx, http.MethodGet, "/categories", false, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateProject(ctx context.Context, req api.ProjectRequest) (int64, error) {
	var out api.CreatedResponse
	if err := c.do(ctx, http.MethodPost, "/projects", true, req, &out); err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("%w: create returned no id", ErrRejected)
	}
	return out.ID, nil
}

func (c *HTTPClient) UpdateProject(ctx context.Context, id int64, req api.ProjectRequest) error {
	return c.do(ctx, http.MethodPut, api.ProjectRoute(id), true, req, nil)
}

func (c *HTTPClient) GetProject(ctx context.Context, id int64) (*api.ProjectRecord, error) {
	var out api.ProjectRecord
	if err := c.do(ctx, http.MethodGet, api.ProjectRoute(id), false, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", false, nil, nil)
}

// do sends one request. Mutating calls need a token; reads attach one when
// the session has it.
func (c *HTTPClient) do(ctx context.Context, method, path string, needAuth bool, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.authorize(req, needAuth); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatus(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request, needAuth bool) error {
	if c.tokens == nil {
		if needAuth {
			return ErrUnauthorized
		}
		return nil
	}
	token, err := c.tokens.Token()
	if err != nil {
		if needAuth {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil
	}
	req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	return nil
}

func (c *HTTPClient) mapTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func mapStatus(resp *http.Response) error {
	msg := resp.Status
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er api.ErrorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
}
