package model

// Actor is the authenticated caller as resolved from the bearer token.
type Actor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}
