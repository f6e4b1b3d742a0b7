package domain

import (
	"time"
)

// EventID is a unique identifier for an event.
type EventID string

// String returns the string representation of the EventID.
func (id EventID) String() string {
	return string(id)
}

// Outcome is the terminal result of one pipeline execution.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeNoResults Outcome = "no_results"
	OutcomeTooLarge  Outcome = "too_large"
	OutcomeFailed    Outcome = "failed"
)

// Event records how a request ended, for the activity log.
type Event struct {
	ID         EventID     `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Workspace  WorkspaceID `json:"workspace"`
	ChatID     int64       `json:"chat_id"`
	Query      string      `json:"query"`
	Outcome    Outcome     `json:"outcome"`
	Stage      Stage       `json:"stage"`               // done or failed
	FailedAt   Stage       `json:"failed_at,omitempty"` // active stage when the request failed
	Title      string      `json:"title,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	Outcome   *Outcome   `json:"outcome,omitempty"`
	ChatID    int64      `json:"chat_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// EventEmitter is the interface for components that record request outcomes.
type EventEmitter interface {
	Emit(event Event)
}

// EventQuery represents a query for events with pagination.
type EventQuery struct {
	Filter EventFilter `json:"filter"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// EventQueryResult contains the result of an event query.
type EventQueryResult struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}
