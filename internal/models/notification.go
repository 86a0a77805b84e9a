package models

import (
	"fmt"
	"time"
)

// NotificationSourceType names which entity a notification refers to.
type NotificationSourceType string

const (
	SourceIncident NotificationSourceType = "incident"
	SourceAnimal   NotificationSourceType = "animal"
	SourceSystem   NotificationSourceType = "system"
)

// NotificationKind is the closed set of notification variants. Consumers
// dispatch on the variant, never on free-form strings.
type NotificationKind string

const (
	KindNewReport    NotificationKind = "new_report"
	KindStatusUpdate NotificationKind = "status_update"
	KindPetCapture   NotificationKind = "pet_capture"
	KindRedemption   NotificationKind = "redemption"
	KindAdoption     NotificationKind = "adoption"
)

// Notification is one per-recipient record produced by the fan-out layer.
type Notification struct {
	ID          string                 `db:"id" json:"id"`
	RecipientID string                 `db:"recipient_id" json:"recipient_id"`
	SourceType  NotificationSourceType `db:"source_type" json:"source_type"`
	SourceID    string                 `db:"source_id" json:"source_id"`
	Kind        NotificationKind       `db:"kind" json:"kind"`
	Message     string                 `db:"message" json:"message"`
	DedupeKey   string                 `db:"dedupe_key" json:"-"`
	Read        bool                   `db:"read" json:"read"`
	Deleted     bool                   `db:"deleted" json:"-"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}

// DedupeKey derives the fan-out idempotence key. Replaying the same event
// for the same recipient maps to the same key and is dropped on insert.
func DedupeKey(recipientID string, sourceType NotificationSourceType, sourceID string, kind NotificationKind, eventAt time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", recipientID, sourceType, sourceID, kind, eventAt.UTC().UnixNano())
}

// NotificationFilter captures listing criteria for notifications.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Page        int
	PageSize    int
}
