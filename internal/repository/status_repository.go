package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/straywatch/straywatch-api/internal/dto"
	"github.com/straywatch/straywatch-api/internal/models"
)

// StatusRepository serves read-side aggregation queries for the dashboard.
// It never drives transitions.
type StatusRepository struct {
	db *sqlx.DB
}

// NewStatusRepository constructs a new repository.
func NewStatusRepository(db *sqlx.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

type statusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// IncidentCounts aggregates incident totals per status.
func (r *StatusRepository) IncidentCounts(ctx context.Context) (map[models.IncidentStatus]int, error) {
	var rows []statusCount
	query := `SELECT status, COUNT(*) AS count FROM incidents GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("incident counts: %w", err)
	}
	counts := make(map[models.IncidentStatus]int, len(rows))
	for _, row := range rows {
		counts[models.IncidentStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// AnimalCounts aggregates animal totals per status.
func (r *StatusRepository) AnimalCounts(ctx context.Context) (map[models.AnimalStatus]int, error) {
	var rows []statusCount
	query := `SELECT status, COUNT(*) AS count FROM animals GROUP BY status`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("animal counts: %w", err)
	}
	counts := make(map[models.AnimalStatus]int, len(rows))
	for _, row := range rows {
		counts[models.AnimalStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// ActiveAssignmentCount counts assignments still blocking an incident slot.
func (r *StatusRepository) ActiveAssignmentCount(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM patrol_assignments WHERE status IN ('scheduled', 'in_progress')`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("active assignment count: %w", err)
	}
	return count, nil
}

// MapMarkers returns open incidents positioned for the dispatch map.
func (r *StatusRepository) MapMarkers(ctx context.Context) ([]dto.MapMarker, error) {
	var markers []dto.MapMarker
	query := `SELECT id, incident_type, priority, status, latitude, longitude
FROM incidents WHERE status IN ('pending_verification', 'verified', 'in_progress')
ORDER BY submitted_at DESC`
	if err := r.db.SelectContext(ctx, &markers, query); err != nil {
		return nil, fmt.Errorf("map markers: %w", err)
	}
	return markers, nil
}

// MonthlyTrend returns per-month submitted and resolved incident counts since
// the given cutoff.
func (r *StatusRepository) MonthlyTrend(ctx context.Context, since time.Time) ([]dto.TrendPoint, error) {
	var points []dto.TrendPoint
	query := `SELECT to_char(date_trunc('month', submitted_at), 'YYYY-MM') AS month,
COUNT(*) AS submitted,
COUNT(*) FILTER (WHERE status = 'resolved') AS resolved
FROM incidents WHERE submitted_at >= $1
GROUP BY date_trunc('month', submitted_at)
ORDER BY date_trunc('month', submitted_at)`
	if err := r.db.SelectContext(ctx, &points, query, since); err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	return points, nil
}
