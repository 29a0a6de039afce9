package model

import "time"

// Comment is one append-only discussion entry on a job. Internal comments
// are staff-only; the rest are visible to the referring doctor. Comments
// are never edited or deleted.
type Comment struct {
	ID          int64     `json:"id"`
	JobID       int64     `json:"job_id"`
	AuthorID    int64     `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	AuthorRole  string    `json:"author_role"`
	Message     string    `json:"message"`
	Attachments []string  `json:"attachments"`
	Internal    bool      `json:"internal"`
	CreatedAt   time.Time `json:"created_at"`
}
