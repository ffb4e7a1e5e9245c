package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
)

type ctxKey string

const (
	correlationIDKey ctxKey = "correlationID"
	callerKey        ctxKey = "caller"
)

func correlationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// CallerFrom returns the authenticated device stored by requireKind.
func CallerFrom(ctx context.Context) (services.Caller, bool) {
	c, ok := ctx.Value(callerKey).(services.Caller)
	return c, ok
}

// withCorrelationID adopts the client's correlation id or assigns one, and
// echoes it in the response headers.
func withCorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.CorrelationIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(common.CorrelationIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationIDKey, id)))
	})
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info(r.Context(), "handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
			"correlation_id", correlationIDFrom(r.Context()),
		)
	})
}

// tokenFromRequest reads the bearer token from the Authorization header or,
// for websocket upgrades, from the token query parameter.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeaderName); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	return r.URL.Query().Get(common.TokenQueryParam)
}

func (s *HTTPServer) requireKind(kind auth.Kind, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			s.writeError(w, r, common.ErrUnauthorized)
			return
		}

		claims, err := s.issuer.Parse(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if claims.Kind != kind {
			s.writeError(w, r, common.ErrUnauthorized)
			return
		}

		c := services.Caller{UserID: claims.UserID, DeviceID: claims.DeviceID}
		next(w, r.WithContext(context.WithValue(r.Context(), callerKey, c)))
	}
}
