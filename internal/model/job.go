package model

import "time"

// Job is one manufacturable unit derived from a customer order. One order
// may yield several jobs. StageCode always references an active stage;
// stage changes go through the pipeline engine only.
type Job struct {
	ID           int64             `json:"id"`
	OrderID      int64             `json:"order_id"`
	WorkType     string            `json:"work_type"`
	Material     string            `json:"material"`
	StageCode    string            `json:"stage_code"`
	OperatorID   *int64            `json:"operator_id,omitempty"`
	Lot          string            `json:"lot,omitempty"`
	DesignFiles  []string          `json:"design_files"`
	MillingFiles []string          `json:"milling_files"`
	Priority     int               `json:"priority"`
	EstDelivery  *time.Time        `json:"estimated_delivery,omitempty"`
	Delivery     *time.Time        `json:"actual_delivery,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Active       bool              `json:"active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// JobFilter narrows job listings. Zero values mean "any".
type JobFilter struct {
	StageCode  string
	OrderID    int64
	Material   string
	WorkType   string
	OperatorID int64
}

// JobUpdate carries a partial update of non-stage fields. Nil pointers
// leave the field untouched.
type JobUpdate struct {
	OperatorID   *int64             `json:"operator_id"`
	Lot          *string            `json:"lot"`
	DesignFiles  *[]string          `json:"design_files"`
	MillingFiles *[]string          `json:"milling_files"`
	Priority     *int               `json:"priority"`
	EstDelivery  *time.Time         `json:"estimated_delivery"`
	Delivery     *time.Time         `json:"actual_delivery"`
	Attributes   *map[string]string `json:"attributes"`
}
