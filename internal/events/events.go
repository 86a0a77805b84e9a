package events

import (
	"time"

	"github.com/straywatch/straywatch-api/internal/models"
)

// Type names a domain event emitted by a state machine transition.
type Type string

const (
	IncidentSubmitted  Type = "incident.submitted"
	IncidentVerified   Type = "incident.verified"
	IncidentRejected   Type = "incident.rejected"
	IncidentDispatched Type = "incident.dispatched"
	IncidentResolved   Type = "incident.resolved"

	AnimalIntake   Type = "animal.intake"
	AnimalObserved Type = "animal.observed"
	AnimalListed   Type = "animal.listed"
	AnimalRedeemed Type = "animal.redeemed"
	AnimalAdopted  Type = "animal.adopted"
)

// Event is the closed payload carried from a state machine to its observers.
// Exactly one event is published per successful transition, after the status
// write commits.
type Event struct {
	Type       Type                          `json:"type"`
	SourceType models.NotificationSourceType `json:"source_type"`
	SourceID   string                        `json:"source_id"`
	Actor      models.Actor                  `json:"actor"`
	OccurredAt time.Time                     `json:"occurred_at"`

	// Recipient hints resolved at emission time. Empty values mean the
	// corresponding party does not exist for this event.
	ReporterID  string `json:"reporter_id,omitempty"`
	StaffID     string `json:"staff_id,omitempty"`
	RFIDOwnerID string `json:"rfid_owner_id,omitempty"`
}
