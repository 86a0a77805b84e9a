package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/models"
)

func newIncidentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestIncidentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()
	repo := NewIncidentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO incidents")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	incident := &models.IncidentReport{
		IncidentType: models.IncidentTypeStray,
		Priority:     models.PriorityMedium,
		Status:       models.IncidentPendingVerification,
		Address:      "Jl. Merdeka 12",
		Description:  "stray dog near the market",
		IncidentDate: time.Now().UTC(),
	}
	err := repo.Create(context.Background(), incident)

	require.NoError(t, err)
	assert.NotEmpty(t, incident.ID)
	assert.False(t, incident.SubmittedAt.IsZero())
	assert.Equal(t, incident.SubmittedAt, incident.TransitionedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()
	repo := NewIncidentRepository(db)

	transitionedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE incidents SET status = $1, transitioned_at = $2, updated_at = $2 WHERE id = $3 AND status = $4`)).
		WithArgs(models.IncidentVerified, transitionedAt, "incident-1", models.IncidentPendingVerification).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.UpdateStatus(context.Background(), "incident-1",
		models.IncidentPendingVerification, models.IncidentVerified, transitionedAt)

	require.NoError(t, err)
	assert.True(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepositoryUpdateStatusStaleRow(t *testing.T) {
	db, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()
	repo := NewIncidentRepository(db)

	transitionedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE incidents")).
		WithArgs(models.IncidentVerified, transitionedAt, "incident-1", models.IncidentPendingVerification).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateStatus(context.Background(), "incident-1",
		models.IncidentPendingVerification, models.IncidentVerified, transitionedAt)

	require.NoError(t, err)
	assert.False(t, updated)
}

func TestIncidentRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()
	repo := NewIncidentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "reporter_id", "incident_type", "priority", "status", "address", "latitude", "longitude",
		"description", "animal_details", "incident_date", "submitted_at", "transitioned_at", "created_at", "updated_at",
	}).AddRow("incident-1", nil, "stray", "medium", "pending_verification", "Jl. Merdeka 12", -6.2, 106.8,
		"stray dog near the market", "", now, now, now, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")). // coarse match
							WithArgs("incident-1").
							WillReturnRows(rows)

	incident, err := repo.GetByID(context.Background(), "incident-1")

	require.NoError(t, err)
	assert.Equal(t, "incident-1", incident.ID)
	assert.Nil(t, incident.ReporterID)
	assert.Equal(t, models.IncidentPendingVerification, incident.Status)
}

func TestIncidentRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newIncidentRepoMock(t)
	defer cleanup()
	repo := NewIncidentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
