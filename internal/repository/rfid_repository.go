package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/straywatch/straywatch-api/internal/models"
)

const rfidColumns = `id, rfid, pet_name, species, breed, owner_id, owner_name, owner_phone, owner_email, created_at, updated_at`

// RFIDRepository manages the registered pet tag registry.
type RFIDRepository struct {
	db *sqlx.DB
}

// NewRFIDRepository constructs a new repository.
func NewRFIDRepository(db *sqlx.DB) *RFIDRepository {
	return &RFIDRepository{db: db}
}

// FindByTag resolves a 9-digit tag to its binding.
func (r *RFIDRepository) FindByTag(ctx context.Context, rfid string) (*models.RFIDBinding, error) {
	var binding models.RFIDBinding
	query := fmt.Sprintf("SELECT %s FROM rfid_bindings WHERE rfid = $1 LIMIT 1", rfidColumns)
	if err := r.db.GetContext(ctx, &binding, query, rfid); err != nil {
		return nil, fmt.Errorf("find rfid binding %s: %w", rfid, err)
	}
	return &binding, nil
}

// Create registers a new tag binding.
func (r *RFIDRepository) Create(ctx context.Context, binding *models.RFIDBinding) error {
	if binding.ID == "" {
		binding.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	binding.CreatedAt = now
	binding.UpdatedAt = now
	query := `INSERT INTO rfid_bindings (id, rfid, pet_name, species, breed, owner_id, owner_name, owner_phone, owner_email, created_at, updated_at)
VALUES (:id, :rfid, :pet_name, :species, :breed, :owner_id, :owner_name, :owner_phone, :owner_email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, binding); err != nil {
		return fmt.Errorf("create rfid binding: %w", err)
	}
	return nil
}
