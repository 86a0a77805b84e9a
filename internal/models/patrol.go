package models

import "time"

// AssignmentStatus is the closed set of patrol assignment states.
type AssignmentStatus string

const (
	AssignmentScheduled  AssignmentStatus = "scheduled"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Active reports whether the assignment still blocks the incident slot.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentScheduled || s == AssignmentInProgress
}

// AssignmentNext is the only legal successor per status. Completed is terminal.
var AssignmentNext = map[AssignmentStatus]AssignmentStatus{
	AssignmentScheduled:  AssignmentInProgress,
	AssignmentInProgress: AssignmentCompleted,
}

// PatrolOutcome is recorded when an assignment completes.
type PatrolOutcome string

const (
	OutcomeCaptured    PatrolOutcome = "captured"
	OutcomeNotFound    PatrolOutcome = "not_found"
	OutcomeRescheduled PatrolOutcome = "rescheduled"
)

// PatrolAssignment binds a catcher to a verified incident for field response.
// At most one active assignment may exist per incident.
type PatrolAssignment struct {
	ID            string           `db:"id" json:"id"`
	IncidentID    string           `db:"incident_id" json:"incident_id"`
	StaffID       string           `db:"staff_id" json:"staff_id"`
	ScheduledTime time.Time        `db:"scheduled_time" json:"scheduled_time"`
	Status        AssignmentStatus `db:"status" json:"status"`
	Outcome       *PatrolOutcome   `db:"outcome" json:"outcome,omitempty"`
	CompletedAt   *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// PatrolFilter captures listing criteria for assignments.
type PatrolFilter struct {
	IncidentID string
	StaffID    string
	ActiveOnly bool
	Page       int
	PageSize   int
}
