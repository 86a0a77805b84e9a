package models

import "time"

// IncidentStatus is the closed set of incident report lifecycle states.
type IncidentStatus string

const (
	IncidentPendingVerification IncidentStatus = "pending_verification"
	IncidentVerified            IncidentStatus = "verified"
	IncidentRejected            IncidentStatus = "rejected"
	IncidentInProgress          IncidentStatus = "in_progress"
	IncidentResolved            IncidentStatus = "resolved"
)

// Terminal reports whether no further transition is possible.
func (s IncidentStatus) Terminal() bool {
	return s == IncidentRejected || s == IncidentResolved
}

// IncidentEvent names a requested transition on an incident report.
type IncidentEvent string

const (
	IncidentEventApprove  IncidentEvent = "approve"
	IncidentEventReject   IncidentEvent = "reject"
	IncidentEventDispatch IncidentEvent = "dispatch"
	IncidentEventClose    IncidentEvent = "close"
)

// IncidentType categorises what was reported.
type IncidentType string

const (
	IncidentTypeBite       IncidentType = "bite"
	IncidentTypeStray      IncidentType = "stray"
	IncidentTypeLost       IncidentType = "lost"
	IncidentTypeInjured    IncidentType = "injured"
	IncidentTypeAggressive IncidentType = "aggressive"
)

// IncidentPriority ranks response urgency.
type IncidentPriority string

const (
	PriorityLow    IncidentPriority = "low"
	PriorityMedium IncidentPriority = "medium"
	PriorityHigh   IncidentPriority = "high"
	PriorityUrgent IncidentPriority = "urgent"
)

// IncidentTransition is one edge of the incident state machine.
type IncidentTransition struct {
	From         IncidentStatus
	To           IncidentStatus
	AllowedRoles []UserRole
}

// IncidentTransitions is the single source of truth for the incident state
// machine. Anything not in this table is an invalid transition.
var IncidentTransitions = map[IncidentEvent]IncidentTransition{
	IncidentEventApprove: {
		From:         IncidentPendingVerification,
		To:           IncidentVerified,
		AllowedRoles: []UserRole{RoleVeterinarian, RoleAdmin},
	},
	IncidentEventReject: {
		From:         IncidentPendingVerification,
		To:           IncidentRejected,
		AllowedRoles: []UserRole{RoleVeterinarian, RoleAdmin},
	},
	IncidentEventDispatch: {
		From:         IncidentVerified,
		To:           IncidentInProgress,
		AllowedRoles: []UserRole{RoleAdmin},
	},
	IncidentEventClose: {
		From:         IncidentInProgress,
		To:           IncidentResolved,
		AllowedRoles: []UserRole{RoleCatcher, RoleVeterinarian, RoleAdmin},
	},
}

// IncidentReport is a public report of a bite, stray, lost or injured animal.
type IncidentReport struct {
	ID              string           `db:"id" json:"id"`
	ReporterID      *string          `db:"reporter_id" json:"reporter_id,omitempty"`
	IncidentType    IncidentType     `db:"incident_type" json:"incident_type"`
	Priority        IncidentPriority `db:"priority" json:"priority"`
	Status          IncidentStatus   `db:"status" json:"status"`
	Address         string           `db:"address" json:"address"`
	Latitude        float64          `db:"latitude" json:"latitude"`
	Longitude       float64          `db:"longitude" json:"longitude"`
	Description     string           `db:"description" json:"description"`
	AnimalDetails   string           `db:"animal_details" json:"animal_details"`
	IncidentDate    time.Time        `db:"incident_date" json:"incident_date"`
	SubmittedAt     time.Time        `db:"submitted_at" json:"submitted_at"`
	TransitionedAt  time.Time        `db:"transitioned_at" json:"transitioned_at"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// IncidentFilter captures listing criteria for incident reports.
type IncidentFilter struct {
	Statuses   []IncidentStatus
	Types      []IncidentType
	Priorities []IncidentPriority
	ReporterID string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}
