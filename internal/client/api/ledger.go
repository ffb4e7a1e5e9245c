package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/gophnotes/internal/common"
)

func idPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

func (c *Client) Folders(ctx context.Context) ([]Folder, error) {
	var out []Folder
	if err := c.do(ctx, http.MethodGet, "/folders", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Folder returns common.ErrNotFound for a folder the account does not own.
func (c *Client) Folder(ctx context.Context, id int64) (*Folder, error) {
	var out Folder
	if err := c.do(ctx, http.MethodGet, idPath("/folder/", id), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFolder must address items to every other device of the account.
func (c *Client) CreateFolder(ctx context.Context, items []FolderContent) (int64, error) {
	var out idResponse
	if err := c.do(ctx, http.MethodPost, "/folder", nil, nonNil(items), &out, true); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) DeleteFolder(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/folder/", id), nil, nil, nil, true)
}

func (c *Client) FolderCommits(ctx context.Context, folderID int64) ([]Commit, error) {
	var out []Commit
	if err := c.do(ctx, http.MethodGet, idPath("/folder/", folderID)+"/commits", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateNote(ctx context.Context, folderID int64, items []NoteContent) (*CreatedNote, error) {
	q := url.Values{"folder_id": {strconv.FormatInt(folderID, 10)}}
	var out CreatedNote
	if err := c.do(ctx, http.MethodPost, "/note", q, nonNil(items), &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Note(ctx context.Context, id int64) (*Note, error) {
	var out Note
	if err := c.do(ctx, http.MethodGet, idPath("/note/", id), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateNote replaces the content when commit is still the server's; a
// stale commit yields common.ErrCommitMismatch.
func (c *Client) UpdateNote(ctx context.Context, id, commit int64, items []NoteContent) (*Commit, error) {
	in := struct {
		Commit      int64         `json:"commit"`
		DeviceNotes []NoteContent `json:"device_notes"`
	}{commit, nonNil(items)}

	var out Commit
	if err := c.do(ctx, http.MethodPut, idPath("/note/", id), nil, in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteNote(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/note/", id), nil, nil, nil, true)
}

// Requests lists the requests addressed to this device.
func (c *Client) Requests(ctx context.Context) (*Requests, error) {
	var out Requests
	if err := c.do(ctx, http.MethodGet, "/requests", nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRequests(ctx context.Context, folderIDs, noteIDs []int64) error {
	if len(folderIDs) == 0 && len(noteIDs) == 0 {
		return common.ErrNoRequestSpecified
	}
	in := struct {
		FolderIDs []int64 `json:"folder_ids"`
		NoteIDs   []int64 `json:"note_ids"`
	}{nonNil(folderIDs), nonNil(noteIDs)}
	return c.do(ctx, http.MethodPost, "/requests", nil, in, nil, true)
}

func (c *Client) RespondRequests(ctx context.Context, a Answers) error {
	a.Folders = nonNil(a.Folders)
	a.Notes = nonNil(a.Notes)
	return c.do(ctx, http.MethodPost, "/respond-requests", nil, a, nil, true)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
