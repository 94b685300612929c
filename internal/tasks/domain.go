package tasks

import "time"

// Status enumerates the task workflow states.
type Status string

const (
	// StatusPending is the initial state of a created task.
	StatusPending Status = "pending"
	// StatusInProgress marks a task being worked on by its assignee.
	StatusInProgress Status = "in_progress"
	// StatusSubmitted marks work handed in and awaiting approval.
	StatusSubmitted Status = "submitted"
	// StatusApproved is a terminal accepted state.
	StatusApproved Status = "approved"
	// StatusRejected sends the task back to its assignee.
	StatusRejected Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusSubmitted},
	StatusSubmitted:  {StatusApproved, StatusRejected},
	StatusRejected:   {StatusInProgress},
}

// CanTransition reports whether the workflow permits moving to the target
// state.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether the status is part of the enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Task represents a unit of assignable work.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	CreatedBy   int64      `json:"created_by"`
	AssigneeID  int64      `json:"assignee_id,omitempty"`
	LocationID  int64      `json:"location_id,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListFilter narrows task listings.
type ListFilter struct {
	Status     Status
	AssigneeID int64
	Page       int
	PerPage    int
}
