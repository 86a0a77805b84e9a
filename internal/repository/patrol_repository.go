package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/straywatch/straywatch-api/internal/models"
)

const patrolColumns = `id, incident_id, staff_id, scheduled_time, status, outcome, completed_at, created_at, updated_at`

// PatrolRepository manages persistence for patrol assignments.
type PatrolRepository struct {
	db *sqlx.DB
}

// NewPatrolRepository constructs a new repository.
func NewPatrolRepository(db *sqlx.DB) *PatrolRepository {
	return &PatrolRepository{db: db}
}

// Create inserts a new assignment in scheduled status.
func (r *PatrolRepository) Create(ctx context.Context, assignment *models.PatrolAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	query := `INSERT INTO patrol_assignments (id, incident_id, staff_id, scheduled_time, status, outcome, completed_at, created_at, updated_at)
VALUES (:id, :incident_id, :staff_id, :scheduled_time, :status, :outcome, :completed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create patrol assignment: %w", err)
	}
	return nil
}

// GetByID fetches a single assignment.
func (r *PatrolRepository) GetByID(ctx context.Context, id string) (*models.PatrolAssignment, error) {
	var assignment models.PatrolAssignment
	query := fmt.Sprintf("SELECT %s FROM patrol_assignments WHERE id = $1 LIMIT 1", patrolColumns)
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, fmt.Errorf("get patrol assignment %s: %w", id, err)
	}
	return &assignment, nil
}

// UpdateStatus writes the assignment status and, on completion, the outcome.
func (r *PatrolRepository) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus, outcome *models.PatrolOutcome, completedAt *time.Time) error {
	query := `UPDATE patrol_assignments SET status = $1, outcome = $2, completed_at = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query, status, outcome, completedAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update patrol assignment %s: %w", id, err)
	}
	return nil
}

// FindActiveByIncident returns the active assignment for an incident, or nil
// when the slot is free.
func (r *PatrolRepository) FindActiveByIncident(ctx context.Context, incidentID string) (*models.PatrolAssignment, error) {
	var assignment models.PatrolAssignment
	query := fmt.Sprintf(`SELECT %s FROM patrol_assignments
WHERE incident_id = $1 AND status IN ('scheduled', 'in_progress') LIMIT 1`, patrolColumns)
	err := r.db.GetContext(ctx, &assignment, query, incidentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active assignment for incident %s: %w", incidentID, err)
	}
	return &assignment, nil
}

// CountActiveOverlapByStaff counts active assignments for the staff member
// scheduled within the overlap window around the proposed time.
func (r *PatrolRepository) CountActiveOverlapByStaff(ctx context.Context, staffID string, scheduledTime time.Time, window time.Duration) (int, error) {
	query := `SELECT COUNT(*) FROM patrol_assignments
WHERE staff_id = $1 AND status IN ('scheduled', 'in_progress')
AND scheduled_time BETWEEN $2 AND $3`
	var count int
	err := r.db.GetContext(ctx, &count, query, staffID, scheduledTime.Add(-window), scheduledTime.Add(window))
	if err != nil {
		return 0, fmt.Errorf("count staff overlap for %s: %w", staffID, err)
	}
	return count, nil
}

// LatestStaffID returns the staff member on the most recent assignment for an
// incident, or empty when none exists.
func (r *PatrolRepository) LatestStaffID(ctx context.Context, incidentID string) (string, error) {
	var staffID string
	query := `SELECT staff_id FROM patrol_assignments WHERE incident_id = $1 ORDER BY created_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &staffID, query, incidentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest staff for incident %s: %w", incidentID, err)
	}
	return staffID, nil
}

// List returns assignments per provided filter.
func (r *PatrolRepository) List(ctx context.Context, filter models.PatrolFilter) ([]models.PatrolAssignment, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.IncidentID != "" {
		where = append(where, fmt.Sprintf("incident_id = $%d", len(args)+1))
		args = append(args, filter.IncidentID)
	}
	if filter.StaffID != "" {
		where = append(where, fmt.Sprintf("staff_id = $%d", len(args)+1))
		args = append(args, filter.StaffID)
	}
	if filter.ActiveOnly {
		where = append(where, "status IN ('scheduled', 'in_progress')")
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

	query := fmt.Sprintf(`SELECT %s FROM patrol_assignments WHERE %s ORDER BY scheduled_time DESC LIMIT %d OFFSET %d`,
		patrolColumns, whereClause, size, offset)
	var assignments []models.PatrolAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list patrol assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM patrol_assignments WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count patrol assignments: %w", err)
	}
	return assignments, total, nil
}
