package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 5*time.Second, logging.Discard())
	require.NoError(t, err)
	c.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
	}
	c.reconnectDelay = 10 * time.Millisecond
	c.SetToken("tok")
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, tag string) {
	writeJSON(w, status, errorResponse{Code: status, Error: tag, Message: tag})
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"ftp://x", "://bad", "localhost:8080"} {
		_, err := NewClient(u, time.Second, logging.Discard())
		assert.Error(t, err, u)
	}
}

func TestFolders_SendsHeaders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/folders", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get(common.AuthorizationHeaderName))
		assert.NotEmpty(t, r.Header.Get(common.CorrelationIDHeaderName))
		writeJSON(w, http.StatusOK, []Folder{
			{ID: 1, State: StateClean, DeviceFolder: &DeviceFolder{SenderDeviceID: 2, Name: "sealed"}},
			{ID: 2, State: StateDeleted},
		})
	}))

	list, err := c.Folders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sealed", list[0].DeviceFolder.Name)
	assert.Nil(t, list[1].DeviceFolder)
}

func TestErrorTagsMapToSentinels(t *testing.T) {
	tests := []struct {
		status int
		tag    string
		want   error
	}{
		{http.StatusConflict, "commit_mismatch", common.ErrCommitMismatch},
		{http.StatusUnprocessableEntity, "devices_mismatch", common.ErrDevicesMismatch},
		{http.StatusNotFound, "not_found", common.ErrNotFound},
		{http.StatusTeapot, "no_such_tag", common.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeErr(w, tt.status, tt.tag)
			}))
			_, err := c.UpdateNote(context.Background(), 1, 0, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeErr(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, Requests{FolderRequests: []FolderRequest{{FolderID: 1, DeviceID: 2}}})
	}))

	reqs, err := c.Requests(context.Background())
	require.NoError(t, err)
	assert.Len(t, reqs.FolderRequests, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeErr(w, http.StatusServiceUnavailable, "internal_error")
	}))

	_, err := c.Folders(context.Background())
	assert.ErrorIs(t, err, common.ErrInternal)
	assert.Equal(t, int32(4), calls.Load())
}

func TestWritesAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeErr(w, http.StatusInternalServerError, "internal_error")
	}))

	_, err := c.CreateFolder(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrInternal)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNetworkFailureIsUnavailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c, err := NewClient("http://"+addr, time.Second, logging.Discard())
	require.NoError(t, err)
	c.backoff = func() retry.Backoff { return retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond)) }

	_, err = c.Folders(context.Background())
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.Equal(t, common.KindTransport, common.KindOf(err))
}

func TestConnectTimeoutDoesNotLimitSlowReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		writeJSON(w, http.StatusOK, []Folder{})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 50*time.Millisecond, logging.Discard())
	require.NoError(t, err)
	c.SetToken("tok")
	assert.Zero(t, c.http.Timeout)

	list, err := c.Folders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReloginOnUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get(common.AuthorizationHeaderName) != "Bearer fresh" {
			writeErr(w, http.StatusUnauthorized, "token_expired")
			return
		}
		writeJSON(w, http.StatusCreated, idResponse{ID: 8})
	}))

	var relogins int
	c.SetRelogin(func(ctx context.Context) (string, error) {
		relogins++
		return "fresh", nil
	})

	id, err := c.CreateFolder(context.Background(), []FolderContent{{DeviceID: 2, Name: "x"}})
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.Equal(t, 1, relogins)
	assert.Equal(t, "fresh", c.Token())
	assert.Equal(t, int32(2), calls.Load())
}

func TestReloginOnlyOnce(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "invalid_token")
	}))
	var relogins int
	c.SetRelogin(func(ctx context.Context) (string, error) {
		relogins++
		return "still-bad", nil
	})

	err := c.DeleteNote(context.Background(), 3)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.Equal(t, 1, relogins)
}

func TestCreateNote_RequestShape(t *testing.T) {
	title := "t"
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "12", r.URL.Query().Get("folder_id"))
		var items []map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&items))
		assert.Equal(t, []map[string]any{{"device_id": float64(2), "name": "t", "text": "body"}}, items)
		writeJSON(w, http.StatusCreated, CreatedNote{ID: 5})
	}))

	n, err := c.CreateNote(context.Background(), 12, []NoteContent{{DeviceID: 2, Title: &title, Text: "body"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.ID)
	assert.Equal(t, int64(0), n.Commit)
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{}, body["folders"])
		assert.Equal(t, []any{}, body["notes"])
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.RespondRequests(context.Background(), Answers{DeviceID: 3}))
}

func TestCreateRequests_Empty(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	assert.ErrorIs(t, c.CreateRequests(context.Background(), nil, nil), common.ErrNoRequestSpecified)
}

func TestAuthCallsAreUnauthenticated(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(common.AuthorizationHeaderName))
		switch r.URL.Path {
		case "/auth/login":
			writeJSON(w, http.StatusOK, tokenResponse{Token: "device"})
		case "/auth/request-verification":
			writeJSON(w, http.StatusOK, tokenResponse{Token: "pending"})
		default:
			writeErr(w, http.StatusConflict, "email_already_used")
		}
	}))
	ctx := context.Background()

	tok, err := c.Login(ctx, "a@b.c", "pk", "pw")
	require.NoError(t, err)
	assert.Equal(t, "device", tok)

	tok, err = c.RequestVerification(ctx, "a@b.c", "pk", "pw")
	require.NoError(t, err)
	assert.Equal(t, "pending", tok)

	assert.ErrorIs(t, c.SendCode(ctx, "a@b.c"), common.ErrEmailAlreadyUsed)
}

var upgrader = websocket.Upgrader{}

func TestWaitVerification(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/wait-verification", r.URL.Path)
		assert.Equal(t, "pending", r.URL.Query().Get(common.TokenQueryParam))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(events.NewText("hello"))
		_ = conn.WriteJSON(events.NewAcceptPendingDevice())
	}))

	ev, err := c.WaitVerification(context.Background(), "pending")
	require.NoError(t, err)
	assert.Equal(t, events.AcceptPendingDevice, ev.Type)
}

func TestWaitVerification_ClosedWithoutResult(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))

	_, err := c.WaitVerification(context.Background(), "pending")
	assert.ErrorIs(t, err, ErrWaitClosed)
}

func TestWaitVerification_Rejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "invalid_token")
	}))

	_, err := c.WaitVerification(context.Background(), "bad")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestListen_ReconnectsAndDelivers(t *testing.T) {
	var conns atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if conns.Add(1) == 1 {
			// Drop the first connection right away.
			return
		}
		_ = conn.WriteJSON(events.NewRefreshNote(1, 2, 3, false))
		_, _, _ = conn.ReadMessage()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan events.Event, 16)
	done := make(chan struct{})
	go func() {
		c.Listen(ctx, func(ev events.Event) { got <- ev })
		close(done)
	}()

	var seen []events.Type
	timeout := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-got:
			seen = append(seen, ev.Type)
		case <-timeout:
			t.Fatalf("events so far: %v", seen)
		}
	}
	assert.Equal(t, []events.Type{events.RefreshRemote, events.RefreshRemote, events.RefreshNote}, seen)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not stop on cancel")
	}
}

func TestHealthChecker(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(l) }()
	defer srv.Stop()

	h, err := NewHealthChecker(l.Addr().String())
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	assert.False(t, h.Online(ctx))

	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	assert.True(t, h.Online(ctx))
}
