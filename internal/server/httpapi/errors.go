package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophnotes/internal/common"
)

var errRouteNotFound = fmt.Errorf("%w: no such route", common.ErrNotFound)

// ErrorResponse is the body of every non-2xx reply. Error carries the stable tag.
type ErrorResponse struct {
	Code          int    `json:"code"`
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// unprocessable lists validation tags that concern request semantics rather
// than request shape.
var unprocessable = map[error]bool{
	common.ErrDevicesMismatch: true,
	common.ErrUnknownFolder:   true,
	common.ErrUnknownNote:     true,
	common.ErrInvalidCode:     true,
}

func statusOf(err error) int {
	switch common.KindOf(err) {
	case common.KindValidation:
		for e := range unprocessable {
			if errors.Is(err, e) {
				return http.StatusUnprocessableEntity
			}
		}
		return http.StatusBadRequest
	case common.KindExpired:
		return http.StatusUnprocessableEntity
	case common.KindConflict:
		return http.StatusConflict
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := ErrorResponse{
		Code:          status,
		Error:         common.TagOf(err),
		CorrelationID: correlationIDFrom(r.Context()),
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "error", err, "path", r.URL.Path, "correlation_id", resp.CorrelationID)
		resp.Error = common.ErrInternal.Tag
		resp.Message = common.ErrInternal.Error()
	} else {
		resp.Message = err.Error()
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads one JSON value from the body into v. Unknown fields are
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", common.ErrBadRequest)
		}
		return fmt.Errorf("%w: %v", common.ErrBadRequest, err)
	}
	return nil
}
