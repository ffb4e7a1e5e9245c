package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophnotes/internal/server/notify"
)

func (s *HTTPServer) serveWS(w http.ResponseWriter, r *http.Request, hub *notify.Hub, cfg notify.ConnConfig) {
	c := caller(r)

	// Upgrade writes its own error response on failure.
	conn, err := notify.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	hub.Serve(r.Context(), conn, c.UserID, c.DeviceID, cfg)
}

// listen is the general push channel of a paired device.
func (s *HTTPServer) listen(w http.ResponseWriter, r *http.Request) {
	s.serveWS(w, r, s.push.Listen, s.push.ListenCfg)
}

// waitVerification delivers AcceptPendingDevice or Timeout to a pending
// device, then closes.
func (s *HTTPServer) waitVerification(w http.ResponseWriter, r *http.Request) {
	s.serveWS(w, r, s.push.Pending, s.push.WaitCfg)
}
