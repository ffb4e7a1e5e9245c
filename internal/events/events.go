// Package events defines the push-channel messages exchanged between the
// notification hub and device clients.
package events

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	AcceptPendingDevice Type = "AcceptPendingDevice"
	RefreshRequests     Type = "RefreshRequests"
	RefreshRemote       Type = "RefreshRemote"
	RefreshFolder       Type = "RefreshFolder"
	RefreshNote         Type = "RefreshNote"
	Text                Type = "Text"
	Timeout             Type = "Timeout"
)

// Event is a tagged union; only the fields of its Type are meaningful.
type Event struct {
	Type     Type
	FolderID int64
	NoteID   int64
	Commit   int64
	Deleted  bool
	Message  string
}

func NewAcceptPendingDevice() Event { return Event{Type: AcceptPendingDevice} }
func NewRefreshRequests() Event     { return Event{Type: RefreshRequests} }
func NewRefreshRemote() Event       { return Event{Type: RefreshRemote} }
func NewTimeout() Event             { return Event{Type: Timeout} }
func NewText(msg string) Event      { return Event{Type: Text, Message: msg} }

func NewRefreshFolder(folderID int64) Event {
	return Event{Type: RefreshFolder, FolderID: folderID}
}

func NewRefreshNote(folderID, noteID, commit int64, deleted bool) Event {
	return Event{Type: RefreshNote, FolderID: folderID, NoteID: noteID, Commit: commit, Deleted: deleted}
}

// Terminal reports whether a verification wait ends after this event.
func (e Event) Terminal() bool {
	return e.Type == AcceptPendingDevice || e.Type == Timeout
}

type refreshNote struct {
	Type     Type  `json:"type"`
	FolderID int64 `json:"folder_id"`
	NoteID   int64 `json:"note_id"`
	Commit   int64 `json:"commit"`
	Deleted  bool  `json:"deleted"`
}

type wire struct {
	Type     Type   `json:"type"`
	ID       int64  `json:"id,omitempty"`
	FolderID int64  `json:"folder_id,omitempty"`
	NoteID   int64  `json:"note_id,omitempty"`
	Commit   int64  `json:"commit,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case RefreshFolder:
		return json.Marshal(wire{Type: e.Type, ID: e.FolderID})
	case RefreshNote:
		return json.Marshal(refreshNote{Type: e.Type, FolderID: e.FolderID, NoteID: e.NoteID, Commit: e.Commit, Deleted: e.Deleted})
	case Text:
		return json.Marshal(struct {
			Type Type   `json:"type"`
			Text string `json:"text"`
		}{e.Type, e.Message})
	case AcceptPendingDevice, RefreshRequests, RefreshRemote, Timeout:
		return json.Marshal(wire{Type: e.Type})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case RefreshFolder:
		*e = NewRefreshFolder(w.ID)
	case RefreshNote:
		*e = NewRefreshNote(w.FolderID, w.NoteID, w.Commit, w.Deleted)
	case Text:
		*e = NewText(w.Text)
	case AcceptPendingDevice, RefreshRequests, RefreshRemote, Timeout:
		*e = Event{Type: w.Type}
	default:
		return fmt.Errorf("unknown event type %q", w.Type)
	}
	return nil
}
