// Package notify keeps the directory of live device push channels and fans
// events out to them.
package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/google/uuid"
)

const sendBuffer = 32

// Session is one registered push channel of a (user, device) pair.
type Session struct {
	ID       string
	UserID   int64
	DeviceID int64

	send chan events.Event
	done chan struct{}
	once sync.Once
}

func newSession(userID, deviceID int64) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		DeviceID: deviceID,
		send:     make(chan events.Event, sendBuffer),
		done:     make(chan struct{}),
	}
}

func (s *Session) Events() <-chan events.Event { return s.send }

// Done is closed once the session is stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop is safe to call any number of times.
func (s *Session) Stop() {
	s.once.Do(func() { close(s.done) })
}

// deliver never blocks: events for a stopped or saturated session are dropped.
func (s *Session) deliver(ev events.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- ev:
		return true
	default:
		return false
	}
}

// Hub maps user id -> device id -> session. The newest registration for a
// device replaces and stops the previous one.
type Hub struct {
	name   string
	logger logging.Logger

	mu    sync.Mutex
	users map[int64]map[int64]*Session
}

func NewHub(name string, logger logging.Logger) *Hub {
	return &Hub{
		name:   name,
		logger: logger.With("module", "notify", "hub", name),
		users:  make(map[int64]map[int64]*Session),
	}
}

func (h *Hub) Connect(ctx context.Context, userID, deviceID int64) *Session {
	s := newSession(userID, deviceID)

	h.mu.Lock()
	devices, ok := h.users[userID]
	if !ok {
		devices = make(map[int64]*Session)
		h.users[userID] = devices
	}
	old := devices[deviceID]
	devices[deviceID] = s
	h.mu.Unlock()

	if old != nil {
		h.logger.Warn(ctx, "device reconnected, closing previous channel",
			"user_id", userID, "device_id", deviceID, "session", old.ID)
		old.Stop()
	}
	h.logger.Debug(ctx, "device connected", "user_id", userID, "device_id", deviceID, "session", s.ID)
	return s
}

// Disconnect stops s and unregisters it unless a newer session already took
// its place.
func (h *Hub) Disconnect(ctx context.Context, s *Session) {
	s.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()

	devices, ok := h.users[s.UserID]
	if !ok {
		return
	}
	if cur, ok := devices[s.DeviceID]; ok && cur.ID == s.ID {
		delete(devices, s.DeviceID)
		h.logger.Debug(ctx, "device disconnected", "user_id", s.UserID, "device_id", s.DeviceID, "session", s.ID)
	}
	if len(devices) == 0 {
		delete(h.users, s.UserID)
	}
}

func (h *Hub) SendToDevice(ctx context.Context, userID, deviceID int64, ev events.Event) bool {
	h.mu.Lock()
	s := h.users[userID][deviceID]
	h.mu.Unlock()

	if s == nil {
		return false
	}
	if !s.deliver(ev) {
		h.logger.Warn(ctx, "event dropped", "user_id", userID, "device_id", deviceID, "type", ev.Type)
		return false
	}
	return true
}

func (h *Hub) BroadcastExcept(ctx context.Context, userID, excluded int64, ev events.Event) {
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.users[userID]))
	for id, s := range h.users[userID] {
		if id != excluded {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		if !s.deliver(ev) {
			h.logger.Warn(ctx, "event dropped", "user_id", userID, "device_id", s.DeviceID, "type", ev.Type)
		}
	}
}

// Online reports whether the device currently has a registered session.
func (h *Hub) Online(userID, deviceID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.users[userID][deviceID]
	return ok
}

// Users returns the number of users with at least one session.
func (h *Hub) Users() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users)
}
