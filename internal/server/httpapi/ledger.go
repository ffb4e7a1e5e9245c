package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
	"github.com/gorilla/mux"
)

type IDResponse struct {
	ID int64 `json:"id"`
}

type UpdateNoteRequest struct {
	Commit      int64                `json:"commit"`
	DeviceNotes []models.NoteContent `json:"device_notes"`
}

type CreateRequestsRequest struct {
	FolderIDs []int64 `json:"folder_ids"`
	NoteIDs   []int64 `json:"note_ids"`
}

type RespondRequestsRequest struct {
	DeviceID int64                 `json:"device_id"`
	Folders  []models.FolderAnswer `json:"folders"`
	Notes    []models.NoteAnswer   `json:"notes"`
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", common.ErrBadRequest, s)
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	return parseID(mux.Vars(r)["id"])
}

func caller(r *http.Request) services.Caller {
	c, _ := CallerFrom(r.Context())
	return c
}

func (s *HTTPServer) fetchFolders(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.FetchFolders(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) fetchFolder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.ledger.FetchFolder(r.Context(), caller(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *HTTPServer) createFolder(w http.ResponseWriter, r *http.Request) {
	var items []models.FolderContent
	if err := decodeJSON(w, r, &items); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.ledger.CreateFolder(r.Context(), caller(r), items)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *HTTPServer) deleteFolder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteFolder(r.Context(), caller(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) fetchCommits(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.ledger.FetchCommits(r.Context(), caller(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// createNote takes the folder from ?folder_id= and an optional starting
// commit from ?commit=.
func (s *HTTPServer) createNote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	folderID, err := parseID(q.Get("folder_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var commit int64
	if v := q.Get("commit"); v != "" {
		if commit, err = strconv.ParseInt(v, 10, 64); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: invalid commit", common.ErrBadRequest))
			return
		}
	}

	var items []models.NoteContent
	if err := decodeJSON(w, r, &items); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.ledger.CreateNote(r.Context(), caller(r), folderID, commit, items)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) fetchNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.ledger.FetchNote(r.Context(), caller(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *HTTPServer) updateNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.ledger.UpdateNote(r.Context(), caller(r), id, req.Commit, req.DeviceNotes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) deleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteNote(r.Context(), caller(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) fetchRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.ledger.FetchRequests(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *HTTPServer) createRequests(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.CreateRequests(r.Context(), caller(r), req.FolderIDs, req.NoteIDs); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) respondRequests(w http.ResponseWriter, r *http.Request) {
	var req RespondRequestsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ledger.RespondRequests(r.Context(), caller(r), req.DeviceID, req.Folders, req.Notes); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
