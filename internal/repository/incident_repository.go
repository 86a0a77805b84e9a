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

const incidentColumns = `id, reporter_id, incident_type, priority, status, address, latitude, longitude,
description, animal_details, incident_date, submitted_at, transitioned_at, created_at, updated_at`

// IncidentRepository manages persistence for incident reports.
type IncidentRepository struct {
	db *sqlx.DB
}

// NewIncidentRepository constructs a new repository.
func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create inserts a new incident report.
func (r *IncidentRepository) Create(ctx context.Context, incident *models.IncidentReport) error {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if incident.SubmittedAt.IsZero() {
		incident.SubmittedAt = now
	}
	incident.TransitionedAt = incident.SubmittedAt
	incident.CreatedAt = now
	incident.UpdatedAt = now
	query := `INSERT INTO incidents (id, reporter_id, incident_type, priority, status, address, latitude, longitude,
description, animal_details, incident_date, submitted_at, transitioned_at, created_at, updated_at)
VALUES (:id, :reporter_id, :incident_type, :priority, :status, :address, :latitude, :longitude,
:description, :animal_details, :incident_date, :submitted_at, :transitioned_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, incident); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetByID fetches a single incident report.
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.IncidentReport, error) {
	var incident models.IncidentReport
	query := fmt.Sprintf("SELECT %s FROM incidents WHERE id = $1 LIMIT 1", incidentColumns)
	if err := r.db.GetContext(ctx, &incident, query, id); err != nil {
		return nil, fmt.Errorf("get incident %s: %w", id, err)
	}
	return &incident, nil
}

// UpdateStatus performs the check-and-set status write. It only succeeds when
// the row still holds the expected status; a false return means the incident
// moved under a concurrent transition.
func (r *IncidentRepository) UpdateStatus(ctx context.Context, id string, from, to models.IncidentStatus, transitionedAt time.Time) (bool, error) {
	query := `UPDATE incidents SET status = $1, transitioned_at = $2, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, to, transitionedAt, id, from)
	if err != nil {
		return false, fmt.Errorf("update incident status %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update incident status %s: %w", id, err)
	}
	return affected == 1, nil
}

// UpdatePriority reassigns priority on a non-terminal incident.
func (r *IncidentRepository) UpdatePriority(ctx context.Context, id string, priority models.IncidentPriority) error {
	query := `UPDATE incidents SET priority = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, priority, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update incident priority %s: %w", id, err)
	}
	return nil
}

// List returns incident reports per provided filter.
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]models.IncidentReport, int, error) {
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
	if len(filter.Types) > 0 {
		values := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			values[i] = string(t)
		}
		where = append(where, fmt.Sprintf("incident_type = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if len(filter.Priorities) > 0 {
		values := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			values[i] = string(p)
		}
		where = append(where, fmt.Sprintf("priority = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	if filter.ReporterID != "" {
		where = append(where, fmt.Sprintf("reporter_id = $%d", len(args)+1))
		args = append(args, filter.ReporterID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("incident_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("incident_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE %s ORDER BY submitted_at DESC LIMIT %d OFFSET %d`,
		incidentColumns, whereClause, size, offset)
	var incidents []models.IncidentReport
	if err := r.db.SelectContext(ctx, &incidents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM incidents WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}
	return incidents, total, nil
}
