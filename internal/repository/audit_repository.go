package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/straywatch/straywatch-api/internal/models"
)

// AuditRepository appends lifecycle transition records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs a new repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts a new audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO audit_entries (id, entity_type, entity_id, actor_id, actor_role, event, from_status, to_status, created_at)
VALUES (:id, :entity_type, :entity_id, :actor_id, :actor_role, :event, :from_status, :to_status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail for one entity, oldest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	query := `SELECT id, entity_type, entity_id, actor_id, actor_role, event, from_status, to_status, created_at
FROM audit_entries WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &entries, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list audit entries for %s/%s: %w", entityType, entityID, err)
	}
	return entries, nil
}
