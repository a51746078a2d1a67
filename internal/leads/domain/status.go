// Package domain provides core business rules for the leads bounded context.
package domain

import "fmt"

// Status is the lifecycle state of a lead.
type Status string

const (
	// StatusOpen means the lead is in the claimable pool.
	StatusOpen Status = "open"
	// StatusClaimed means exactly one agent holds a time-boxed claim.
	StatusClaimed Status = "claimed"
	// StatusCompleted means the claiming agent delivered proof of completion.
	StatusCompleted Status = "completed"
	// StatusRejected is terminal only when reached from completed (an admin
	// correction). A claimed lead that is rejected or expires goes back to
	// open instead.
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClaimed, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// transitions lists every legal lifecycle edge. Anything absent here is
// invalid regardless of who asks.
var transitions = map[Status][]Status{
	StatusOpen:      {StatusClaimed},
	StatusClaimed:   {StatusOpen, StatusCompleted},
	StatusCompleted: {StatusRejected},
}

// CanTransition reports whether from → to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError names the current and requested status of an
// illegal transition attempt.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// ValidateTransition returns an InvalidTransitionError when from → to is not
// a legal lifecycle edge.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// IsTerminal reports whether no further transitions can occur. Rejected is
// terminal only as an admin correction of a completed lead; a released claim
// is stored as open again, so a persisted rejected status is always terminal.
func (s Status) IsTerminal() bool {
	return s == StatusRejected
}
