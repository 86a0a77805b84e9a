package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/models"
)

func newPatrolRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestPatrolRepositoryFindActiveByIncident(t *testing.T) {
	db, mock, cleanup := newPatrolRepoMock(t)
	defer cleanup()
	repo := NewPatrolRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "incident_id", "staff_id", "scheduled_time", "status", "outcome", "completed_at", "created_at", "updated_at",
	}).AddRow("assignment-1", "incident-1", "catcher-1", now, "scheduled", nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")). // coarse match
							WithArgs("incident-1").
							WillReturnRows(rows)

	assignment, err := repo.FindActiveByIncident(context.Background(), "incident-1")

	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, models.AssignmentScheduled, assignment.Status)
	assert.Nil(t, assignment.Outcome)
}

func TestPatrolRepositoryFindActiveByIncidentFreeSlot(t *testing.T) {
	db, mock, cleanup := newPatrolRepoMock(t)
	defer cleanup()
	repo := NewPatrolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("incident-1").
		WillReturnError(sql.ErrNoRows)

	assignment, err := repo.FindActiveByIncident(context.Background(), "incident-1")

	require.NoError(t, err)
	assert.Nil(t, assignment)
}

func TestPatrolRepositoryCountActiveOverlapByStaff(t *testing.T) {
	db, mock, cleanup := newPatrolRepoMock(t)
	defer cleanup()
	repo := NewPatrolRepository(db)

	scheduled := time.Now().UTC().Add(time.Hour)
	window := 2 * time.Hour
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM patrol_assignments")).
		WithArgs("catcher-1", scheduled.Add(-window), scheduled.Add(window)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountActiveOverlapByStaff(context.Background(), "catcher-1", scheduled, window)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPatrolRepositoryLatestStaffIDNone(t *testing.T) {
	db, mock, cleanup := newPatrolRepoMock(t)
	defer cleanup()
	repo := NewPatrolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT staff_id FROM patrol_assignments")).
		WithArgs("incident-1").
		WillReturnError(sql.ErrNoRows)

	staffID, err := repo.LatestStaffID(context.Background(), "incident-1")

	require.NoError(t, err)
	assert.Empty(t, staffID)
}

func TestPatrolRepositoryUpdateStatusWritesOutcome(t *testing.T) {
	db, mock, cleanup := newPatrolRepoMock(t)
	defer cleanup()
	repo := NewPatrolRepository(db)

	outcome := models.OutcomeCaptured
	completedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE patrol_assignments SET status = $1, outcome = $2, completed_at = $3, updated_at = $4 WHERE id = $5")).
		WithArgs(models.AssignmentCompleted, &outcome, &completedAt, sqlmock.AnyArg(), "assignment-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "assignment-1", models.AssignmentCompleted, &outcome, &completedAt)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
