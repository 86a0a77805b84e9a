package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/straywatch/straywatch-api/internal/models"
)

const animalColumns = `id, rfid, name, species, breed, sex, color, markings, neutered, status,
capture_date, capture_location, captured_by, incident_id, owner_contact, transitioned_at, created_at, updated_at`

// AnimalRepository manages persistence for captured animals and their
// observation logs.
type AnimalRepository struct {
	db *sqlx.DB
}

// NewAnimalRepository constructs a new repository.
func NewAnimalRepository(db *sqlx.DB) *AnimalRepository {
	return &AnimalRepository{db: db}
}

// Create inserts a new animal record at intake.
func (r *AnimalRepository) Create(ctx context.Context, animal *models.Animal) error {
	if animal.ID == "" {
		animal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if animal.CaptureDate.IsZero() {
		animal.CaptureDate = now
	}
	animal.TransitionedAt = now
	animal.CreatedAt = now
	animal.UpdatedAt = now
	query := `INSERT INTO animals (id, rfid, name, species, breed, sex, color, markings, neutered, status,
capture_date, capture_location, captured_by, incident_id, owner_contact, transitioned_at, created_at, updated_at)
VALUES (:id, :rfid, :name, :species, :breed, :sex, :color, :markings, :neutered, :status,
:capture_date, :capture_location, :captured_by, :incident_id, :owner_contact, :transitioned_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, animal); err != nil {
		return fmt.Errorf("create animal: %w", err)
	}
	return nil
}

// GetByID fetches a single animal.
func (r *AnimalRepository) GetByID(ctx context.Context, id string) (*models.Animal, error) {
	var animal models.Animal
	query := fmt.Sprintf("SELECT %s FROM animals WHERE id = $1 LIMIT 1", animalColumns)
	if err := r.db.GetContext(ctx, &animal, query, id); err != nil {
		return nil, fmt.Errorf("get animal %s: %w", id, err)
	}
	return &animal, nil
}

// UpdateStatus performs the check-and-set status write with an optional owner
// contact recorded at redemption. A false return means a concurrent transition
// moved the animal first.
func (r *AnimalRepository) UpdateStatus(ctx context.Context, id string, from, to models.AnimalStatus, ownerContact *string, transitionedAt time.Time) (bool, error) {
	query := `UPDATE animals SET status = $1, owner_contact = COALESCE($2, owner_contact), transitioned_at = $3, updated_at = $3
WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, to, ownerContact, transitionedAt, id, from)
	if err != nil {
		return false, fmt.Errorf("update animal status %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update animal status %s: %w", id, err)
	}
	return affected == 1, nil
}

// AppendObservation adds an entry to the append-only observation log.
func (r *AnimalRepository) AppendObservation(ctx context.Context, entry *models.ObservationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.Date.IsZero() {
		entry.Date = now
	}
	entry.CreatedAt = now
	query := `INSERT INTO observation_log (id, animal_id, date, notes, status, recorded_by, created_at)
VALUES (:id, :animal_id, :date, :notes, :status, :recorded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}

// ListObservations returns the observation log in chronological order.
func (r *AnimalRepository) ListObservations(ctx context.Context, animalID string) ([]models.ObservationEntry, error) {
	var entries []models.ObservationEntry
	query := `SELECT id, animal_id, date, notes, status, recorded_by, created_at
FROM observation_log WHERE animal_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &entries, query, animalID); err != nil {
		return nil, fmt.Errorf("list observations for %s: %w", animalID, err)
	}
	return entries, nil
}

// List returns animals per provided filter.
func (r *AnimalRepository) List(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if len(filter.Statuses) > 0 {
		values := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.Species != "" {
		where = append(where, fmt.Sprintf("species = $%d", len(args)+1))
		args = append(args, filter.Species)
	}
	if filter.RFIDOnly {
		where = append(where, "rfid IS NOT NULL")
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM animals WHERE %s ORDER BY capture_date DESC LIMIT %d OFFSET %d`,
		animalColumns, whereClause, size, offset)
	var animals []models.Animal
	if err := r.db.SelectContext(ctx, &animals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list animals: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM animals WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count animals: %w", err)
	}
	return animals, total, nil
}
