package model

import "time"

// Stage is one named, ordered step in the manufacturing pipeline.
// Code is the stable identity; Order defines the pipeline position.
// An empty Materials set means the stage applies to every material.
type Stage struct {
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Order               int       `json:"order"`
	Materials           []string  `json:"materials"`
	AllowsBackwardEntry bool      `json:"allows_backward_entry"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
