package domain

import "time"

// EventType identifies a pipeline lifecycle event
type EventType string

const (
	EventAnalysisCompleted EventType = "analysis.completed"
	EventScoreCalculated   EventType = "score.calculated"
	EventWorthCalculated   EventType = "worth.calculated"
)

// Event is a pipeline lifecycle notification published after a stage
// finishes. ID is a ULID so events sort by emission time.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AnalysisRequest asks the worker to run the full pipeline for a user
type AnalysisRequest struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}
