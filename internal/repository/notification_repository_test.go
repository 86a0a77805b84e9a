package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/models"
)

func newNotificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func testNotification() *models.Notification {
	return &models.Notification{
		RecipientID: "user-1",
		SourceType:  models.SourceIncident,
		SourceID:    "incident-1",
		Kind:        models.KindStatusUpdate,
		Message:     "Your incident report was verified and queued for dispatch.",
		DedupeKey:   models.DedupeKey("user-1", models.SourceIncident, "incident-1", models.KindStatusUpdate, time.Now().UTC()),
	}
}

func TestNotificationRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	notification := testNotification()
	inserted, err := repo.Insert(context.Background(), notification)

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, notification.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryInsertDuplicateIsDropped(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	// ON CONFLICT (dedupe_key) DO NOTHING reports zero rows affected.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Insert(context.Background(), testNotification())

	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestNotificationRepositoryUnreadCount(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE AND deleted = FALSE`)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.UnreadCount(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNotificationRepositoryMarkAllRead(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE AND deleted = FALSE`)).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.MarkAllRead(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET deleted = TRUE WHERE id = $1")).
		WithArgs("notification-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "notification-1"))
}
