// Package api is the device side of the network contract: a JSON-over-HTTP
// client for one account, its push channel and the server health ready.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// ReloginFunc obtains a fresh device token after the server rejected the
// current one.
type ReloginFunc func(ctx context.Context) (string, error)

type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  logging.Logger

	mu      sync.Mutex
	token   string
	relogin ReloginFunc

	// backoff is called once per request, Backoff values are stateful.
	backoff        func() retry.Backoff
	reconnectDelay time.Duration
}

// NewClient builds a client for serverURL. connectTimeout bounds dialing
// only; request lifetimes come from the caller's context.
func NewClient(serverURL string, connectTimeout time.Duration, logger logging.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = connectTimeout

	return &Client{
		baseURL: u,
		http:    &http.Client{Transport: tr},
		logger:  logger.With("module", "api"),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
		},
		reconnectDelay: time.Second,
	}, nil
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetRelogin enables one transparent re-login per request rejected as
// unauthorized.
func (c *Client) SetRelogin(fn ReloginFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relogin = fn
}

func (c *Client) reloginFunc() ReloginFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relogin
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// decodeError turns a non-2xx reply into its error sentinel.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		if e, ok := common.FromTag(er.Error); ok {
			if er.Message != "" && er.Message != e.Error() {
				return fmt.Errorf("%w: %s", e, er.Message)
			}
			return e
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return common.ErrUnauthorized
	}
	return fmt.Errorf("%w: unexpected status %d", common.ErrInternal, resp.StatusCode)
}

// send performs one attempt and also reports the reply status, 0 when no
// reply arrived.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, authed bool, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(common.CorrelationIDHeaderName, uuid.NewString())
	if authed {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.Token())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

// attempt sends once, or retries with backoff for reads failing on the
// network or with a 5xx reply.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body []byte, authed bool, out any) error {
	if method != http.MethodGet {
		_, err := c.send(ctx, method, path, query, body, authed, out)
		return err
	}
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		status, err := c.send(ctx, method, path, query, body, authed, out)
		if err != nil && (status >= 500 || errors.Is(err, common.ErrUnavailable)) {
			c.logger.Debug(ctx, "request failed, retrying", "path", path, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, authed bool) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = b
	}

	err := c.attempt(ctx, method, path, query, body, authed, out)
	if !authed || common.KindOf(err) != common.KindUnauthorized {
		return err
	}

	relogin := c.reloginFunc()
	if relogin == nil {
		return err
	}
	c.logger.Info(ctx, "token rejected, logging in again", "path", path)
	token, lerr := relogin(ctx)
	if lerr != nil {
		return lerr
	}
	c.SetToken(token)
	return c.attempt(ctx, method, path, query, body, authed, out)
}
