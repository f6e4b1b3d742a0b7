package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkspaceID namespaces the temporary files of one request.
type WorkspaceID string

// String returns the string representation of the WorkspaceID.
func (id WorkspaceID) String() string {
	return string(id)
}

// NewWorkspaceID returns a collision-free workspace identifier.
func NewWorkspaceID() WorkspaceID {
	return WorkspaceID("ws_" + uuid.New().String())
}

// Request is one inbound text message handed to the pipeline.
type Request struct {
	ChatID     int64
	MessageID  int
	UserName   string
	Query      string
	Workspace  WorkspaceID
	ReceivedAt time.Time
}

// NewRequest creates a request with a fresh workspace identifier.
func NewRequest(chatID int64, messageID int, userName, query string) *Request {
	return &Request{
		ChatID:     chatID,
		MessageID:  messageID,
		UserName:   userName,
		Query:      query,
		Workspace:  NewWorkspaceID(),
		ReceivedAt: time.Now(),
	}
}

// StatusHandle references the progress message sent in reply to a request.
type StatusHandle struct {
	ChatID    int64
	MessageID int
}

// Stage is a state of the fulfillment pipeline.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageSearching         Stage = "searching"
	StageDownloading       Stage = "downloading"
	StageSizeChecking      Stage = "size_checking"
	StageThumbnailOptional Stage = "thumbnail_optional"
	StageDelivering        Stage = "delivering"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// IsTerminal returns true for Done and Failed.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}
