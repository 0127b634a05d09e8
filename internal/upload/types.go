package upload

import "io"

type Status string

const (
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Item is one file enqueued for upload. Items are identified by a locally
// generated id, never by list position.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Progress int    `json:"progress"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	JobID    string `json:"job_id,omitempty"`
}

// Terminal reports whether the item can no longer change state.
func (i Item) Terminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusError
}

// Rejection is a file refused before any network call was made.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// File is a local file handle handed to Submit. Open is called once, from the
// upload worker goroutine.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// Options configures a Controller.
type Options struct {
	AllowedExtensions []string
	MaxBytes          int64
	AllowMultiple     bool
	// OnCompleted fires once per item that reaches StatusCompleted, with a
	// snapshot of the item including any server-assigned job id.
	OnCompleted func(Item)
}
