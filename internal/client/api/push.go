package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/gorilla/websocket"
)

var dialer = websocket.Dialer{HandshakeTimeout: 5 * time.Second}

func (c *Client) wsURL(path, token string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + path
	u.RawQuery = url.Values{common.TokenQueryParam: {token}}.Encode()
	return u.String()
}

func (c *Client) dial(ctx context.Context, path, token string) (*websocket.Conn, error) {
	conn, resp, err := dialer.DialContext(ctx, c.wsURL(path, token), nil)
	if err == nil {
		return conn, nil
	}
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, decodeError(resp)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
}

// readEvents delivers events from conn until it fails or ctx is done. The
// connection is closed on return.
func readEvents(ctx context.Context, conn *websocket.Conn, handle func(events.Event) bool) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var ev events.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			// Unknown event types from a newer server are skipped.
			continue
		}
		if !handle(ev) {
			return nil
		}
	}
}

// Listen keeps the account's push channel open until ctx is done,
// reconnecting after each failure. handle runs on the listener goroutine;
// a synthetic RefreshRemote is delivered after every (re)connect so events
// missed while offline are caught up.
func (c *Client) Listen(ctx context.Context, handle func(events.Event)) {
	for {
		err := c.listenOnce(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		c.logger.Debug(ctx, "push channel lost", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) listenOnce(ctx context.Context, handle func(events.Event)) error {
	conn, err := c.dial(ctx, "/notify/listen", c.Token())
	if common.KindOf(err) == common.KindUnauthorized {
		if relogin := c.reloginFunc(); relogin != nil {
			token, lerr := relogin(ctx)
			if lerr != nil {
				return lerr
			}
			c.SetToken(token)
			conn, err = c.dial(ctx, "/notify/listen", token)
		}
	}
	if err != nil {
		return err
	}

	c.logger.Debug(ctx, "push channel connected")
	handle(events.NewRefreshRemote())
	return readEvents(ctx, conn, func(ev events.Event) bool {
		handle(ev)
		return true
	})
}

var ErrWaitClosed = errors.New("verification channel closed without a result")

// WaitVerification blocks until the pending device is accepted or the
// server-side wait lifetime elapses. It returns the terminal event,
// AcceptPendingDevice or Timeout.
func (c *Client) WaitVerification(ctx context.Context, pendingToken string) (events.Event, error) {
	conn, err := c.dial(ctx, "/auth/wait-verification", pendingToken)
	if err != nil {
		return events.Event{}, err
	}

	var result events.Event
	err = readEvents(ctx, conn, func(ev events.Event) bool {
		if ev.Terminal() {
			result = ev
			return false
		}
		return true
	})
	if result.Type != "" {
		return result, nil
	}
	if ctx.Err() != nil {
		return events.Event{}, ctx.Err()
	}
	return events.Event{}, fmt.Errorf("%w: %v", ErrWaitClosed, err)
}
