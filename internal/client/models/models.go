// Package models defines the rows of the client's local cache.
package models

// AccountKind tells whether an account is synced with a server.
type AccountKind string

const (
	KindRemote    AccountKind = "remote"
	KindLocalOnly AccountKind = "local"
)

// State is the replication state of a local folder or note. User edits only
// ever set Modified or Deleted; reconciliation resets rows to Clean or
// removes them.
type State string

const (
	StateClean    State = "clean"
	StateModified State = "modified"
	StateDeleted  State = "deleted"
)

// Credentials is the opaque blob kept for a Remote account.
type Credentials struct {
	ServerURL  string `json:"server_url"`
	Email      string `json:"email"`
	Token      string `json:"token"`
	UserID     int64  `json:"user_id"`
	DeviceID   int64  `json:"device_id"`
	PrivateKey string `json:"private_key"`
	Password   string `json:"password"`
}

type Account struct {
	ID          int64
	Name        string
	Kind        AccountKind
	Credentials *Credentials
}

type Folder struct {
	ID        int64
	AccountID int64
	RemoteID  *int64
	Name      string
	State     State
}

// Note carries Revision, a local counter bumped by every user edit. Writes
// made by reconciliation are conditional on the revision they observed.
type Note struct {
	ID       int64
	FolderID int64
	RemoteID *int64
	Title    *string
	Text     string
	Commit   int64
	State    State
	Revision int64
}

// Device is another device of a Remote account, as last fetched from the server.
type Device struct {
	ID        int64
	AccountID int64
	Pubkey    string
}
