package models

import "time"

// AuditEntry records one lifecycle transition for audit purposes. Entries are
// append-only and retained for terminal entities.
type AuditEntry struct {
	ID         string    `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	ActorRole  UserRole  `db:"actor_role" json:"actor_role"`
	Event      string    `db:"event" json:"event"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Audit entity type constants.
const (
	AuditEntityIncident   = "incident"
	AuditEntityAnimal     = "animal"
	AuditEntityAssignment = "patrol_assignment"
	AuditEntityAuth       = "auth"
)
