package api

import "time"

const (
	StateClean   = "clean"
	StateDeleted = "deleted"
)

// DeviceFolder is a folder name as sealed for this device.
type DeviceFolder struct {
	SenderDeviceID int64  `json:"sender_device_id"`
	Name           string `json:"name"`
}

type Folder struct {
	ID           int64         `json:"id"`
	State        string        `json:"state"`
	DeviceFolder *DeviceFolder `json:"device_folder"`
}

// FolderContent addresses a folder name to one receiving device.
type FolderContent struct {
	DeviceID int64  `json:"device_id"`
	Name     string `json:"name"`
}

type DeviceNote struct {
	SenderDeviceID int64   `json:"sender_device_id"`
	Title          *string `json:"name"`
	Text           string  `json:"text"`
}

type Note struct {
	ID         int64       `json:"id"`
	FolderID   int64       `json:"folder_id"`
	Commit     int64       `json:"commit"`
	State      string      `json:"state"`
	DeviceNote *DeviceNote `json:"device_note"`
}

// NoteContent addresses note content to one receiving device.
type NoteContent struct {
	DeviceID int64   `json:"device_id"`
	Title    *string `json:"name"`
	Text     string  `json:"text"`
}

type Commit struct {
	NoteID int64  `json:"note_id"`
	Commit int64  `json:"commit"`
	State  string `json:"state"`
}

type CreatedNote struct {
	ID     int64 `json:"id"`
	Commit int64 `json:"commit"`
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

type FolderAnswer struct {
	FolderID int64  `json:"folder_id"`
	Name     string `json:"name"`
}

type NoteAnswer struct {
	NoteID int64   `json:"note_id"`
	Title  *string `json:"name"`
	Text   string  `json:"text"`
}

// Answers is the content this device supplies for requests of DeviceID.
type Answers struct {
	DeviceID int64          `json:"device_id"`
	Folders  []FolderAnswer `json:"folders"`
	Notes    []NoteAnswer   `json:"notes"`
}

type Device struct {
	ID        int64     `json:"id"`
	Pubkey    string    `json:"pubkey"`
	CreatedAt time.Time `json:"created_at"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
