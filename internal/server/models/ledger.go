package models

import "time"

type State string

const (
	StateClean   State = "clean"
	StateDeleted State = "deleted"
)

type Folder struct {
	ID        int64
	UserID    int64
	State     State
	CreatedAt time.Time
}

// DeviceFolder is the folder name as delivered to one receiving device.
type DeviceFolder struct {
	SenderDeviceID int64  `json:"sender_device_id"`
	Name           string `json:"name"`
}

// FolderView is a folder as seen by one device: the replica is nil until the
// device has received the content.
type FolderView struct {
	ID           int64         `json:"id"`
	State        State         `json:"state"`
	DeviceFolder *DeviceFolder `json:"device_folder"`
}

type Note struct {
	ID        int64
	FolderID  int64
	Commit    int64
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DeviceNote struct {
	SenderDeviceID int64   `json:"sender_device_id"`
	Title          *string `json:"name"`
	Text           string  `json:"text"`
}

type NoteView struct {
	ID         int64       `json:"id"`
	FolderID   int64       `json:"folder_id"`
	Commit     int64       `json:"commit"`
	State      State       `json:"state"`
	DeviceNote *DeviceNote `json:"device_note"`
}

// Commit is one entry of a folder's commit list.
type Commit struct {
	NoteID int64 `json:"note_id"`
	Commit int64 `json:"commit"`
	State  State `json:"state"`
}

// FolderContent is a folder name addressed to one receiving device.
type FolderContent struct {
	DeviceID int64  `json:"device_id"`
	Name     string `json:"name"`
}

// NoteContent is note content addressed to one receiving device.
type NoteContent struct {
	DeviceID int64   `json:"device_id"`
	Title    *string `json:"name"`
	Text     string  `json:"text"`
}

type FolderRequest struct {
	FolderID int64 `json:"folder_id"`
	DeviceID int64 `json:"device_id"`
}

type NoteRequest struct {
	NoteID   int64 `json:"note_id"`
	DeviceID int64 `json:"device_id"`
}

type Requests struct {
	FolderRequests []FolderRequest `json:"folder_requests"`
	NoteRequests   []NoteRequest   `json:"note_requests"`
}

// FolderAnswer and NoteAnswer carry content supplied for another device's request.
type FolderAnswer struct {
	FolderID int64  `json:"folder_id"`
	Name     string `json:"name"`
}

type NoteAnswer struct {
	NoteID int64   `json:"note_id"`
	Title  *string `json:"name"`
	Text   string  `json:"text"`
}
