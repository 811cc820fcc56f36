// Package progress tracks the state of in-flight tour generations per request.
package progress

import "time"

type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is the visible progress of one generation request.
type Status struct {
	RequestID    string    `json:"requestId"`
	VisitorID    string    `json:"visitorId"`
	State        State     `json:"state"`
	Progress     float64   `json:"progress"`
	Stage        string    `json:"stage"`
	HasError     bool      `json:"hasError"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Mutation changes a stored status in place and returns how long the entry stays
// queryable afterwards. A non-positive duration evicts it.
type Mutation func(s *Status) (time.Duration, error)
