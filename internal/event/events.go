// Package event holds the payload contracts published to the broker.
package event

import "time"

type JobCreatedPayload struct {
	JobID     int64     `json:"job_id"`
	OrderID   int64     `json:"order_id"`
	WorkType  string    `json:"work_type"`
	Material  string    `json:"material"`
	StageCode string    `json:"stage_code"`
	CreatedAt time.Time `json:"created_at"`
}

type StageChangedPayload struct {
	JobID      int64     `json:"job_id"`
	FromStage  string    `json:"from_stage"`
	ToStage    string    `json:"to_stage"`
	Direction  string    `json:"direction"` // forward or backward
	ActorID    int64     `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

type CommentCreatedPayload struct {
	CommentID  int64     `json:"comment_id"`
	JobID      int64     `json:"job_id"`
	AuthorID   int64     `json:"author_id"`
	Internal   bool      `json:"internal"`
	OccurredAt time.Time `json:"occurred_at"`
}
