package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/events"
	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

type notificationRepoStub struct {
	byID      map[string]*models.Notification
	dedupe    map[string]struct{}
	seq       int
	insertErr error
	marked    []string
	markedAll []string
	deleted   []string
}

func newNotificationRepoStub(seed ...*models.Notification) *notificationRepoStub {
	stub := &notificationRepoStub{
		byID:   make(map[string]*models.Notification),
		dedupe: make(map[string]struct{}),
	}
	for _, notification := range seed {
		stub.byID[notification.ID] = notification
		stub.dedupe[notification.DedupeKey] = struct{}{}
	}
	return stub
}

func (s *notificationRepoStub) Insert(ctx context.Context, notification *models.Notification) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if _, exists := s.dedupe[notification.DedupeKey]; exists {
		return false, nil
	}
	s.seq++
	if notification.ID == "" {
		notification.ID = fmt.Sprintf("notification-%d", s.seq)
	}
	s.dedupe[notification.DedupeKey] = struct{}{}
	s.byID[notification.ID] = notification
	return true, nil
}

func (s *notificationRepoStub) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	notification, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *notification
	return &copied, nil
}

func (s *notificationRepoStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	result := []models.Notification{}
	for _, notification := range s.byID {
		if filter.RecipientID != "" && notification.RecipientID != filter.RecipientID {
			continue
		}
		if filter.UnreadOnly && notification.Read {
			continue
		}
		result = append(result, *notification)
	}
	return result, len(result), nil
}

func (s *notificationRepoStub) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count := 0
	for _, notification := range s.byID {
		if notification.RecipientID == recipientID && !notification.Read {
			count++
		}
	}
	return count, nil
}

func (s *notificationRepoStub) MarkRead(ctx context.Context, id string) error {
	s.marked = append(s.marked, id)
	if notification, ok := s.byID[id]; ok {
		notification.Read = true
	}
	return nil
}

func (s *notificationRepoStub) MarkAllRead(ctx context.Context, recipientID string) error {
	s.markedAll = append(s.markedAll, recipientID)
	return nil
}

func (s *notificationRepoStub) SoftDelete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type staffDirectoryStub struct {
	ids       []string
	err       error
	lastRoles []models.UserRole
}

func (s *staffDirectoryStub) ListIDsByRoles(ctx context.Context, roles ...models.UserRole) ([]string, error) {
	s.lastRoles = roles
	return s.ids, s.err
}

func recipientsOf(repo *notificationRepoStub) []string {
	recipients := make([]string, 0, len(repo.byID))
	for _, notification := range repo.byID {
		recipients = append(recipients, notification.RecipientID)
	}
	return recipients
}

func TestNotificationFanoutNewReport(t *testing.T) {
	repo := newNotificationRepoStub()
	staff := &staffDirectoryStub{ids: []string{"admin-1", "vet-1"}}
	svc := NewNotificationService(repo, staff, nil)

	err := svc.OnEvent(context.Background(), events.Event{
		Type:       events.IncidentSubmitted,
		SourceType: models.SourceIncident,
		SourceID:   "incident-1",
		OccurredAt: time.Now().UTC(),
	})

	require.NoError(t, err)
	assert.ElementsMatch(t, []models.UserRole{models.RoleAdmin, models.RoleVeterinarian}, staff.lastRoles)
	assert.ElementsMatch(t, []string{"admin-1", "vet-1"}, recipientsOf(repo))
	for _, notification := range repo.byID {
		assert.Equal(t, models.KindNewReport, notification.Kind)
		assert.Equal(t, "incident-1", notification.SourceID)
	}
}

func TestNotificationFanoutIsIdempotent(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	event := events.Event{
		Type:       events.IncidentVerified,
		SourceType: models.SourceIncident,
		SourceID:   "incident-1",
		ReporterID: "user-1",
		OccurredAt: time.Now().UTC(),
	}

	require.NoError(t, svc.OnEvent(context.Background(), event))
	require.Len(t, repo.byID, 1)

	// Redelivery of the same event maps to the same dedupe key.
	require.NoError(t, svc.OnEvent(context.Background(), event))
	assert.Len(t, repo.byID, 1)
}

func TestNotificationFanoutResolvedDedupesRecipients(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	err := svc.OnEvent(context.Background(), events.Event{
		Type:       events.IncidentResolved,
		SourceType: models.SourceIncident,
		SourceID:   "incident-1",
		ReporterID: "user-1",
		StaffID:    "user-1",
		OccurredAt: time.Now().UTC(),
	})

	require.NoError(t, err)
	assert.Len(t, repo.byID, 1)
}

func TestNotificationFanoutPetCapture(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	err := svc.OnEvent(context.Background(), events.Event{
		Type:        events.AnimalIntake,
		SourceType:  models.SourceAnimal,
		SourceID:    "animal-1",
		RFIDOwnerID: "owner-1",
		OccurredAt:  time.Now().UTC(),
	})

	require.NoError(t, err)
	require.Len(t, repo.byID, 1)
	for _, notification := range repo.byID {
		assert.Equal(t, "owner-1", notification.RecipientID)
		assert.Equal(t, models.KindPetCapture, notification.Kind)
	}
}

func TestNotificationFanoutIntakeWithoutOwnerIsSilent(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	err := svc.OnEvent(context.Background(), events.Event{
		Type:       events.AnimalIntake,
		SourceType: models.SourceAnimal,
		SourceID:   "animal-1",
		OccurredAt: time.Now().UTC(),
	})

	require.NoError(t, err)
	assert.Empty(t, repo.byID)
}

func TestNotificationFanoutUnroutedEvent(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	err := svc.OnEvent(context.Background(), events.Event{
		Type:       events.AnimalObserved,
		SourceType: models.SourceAnimal,
		SourceID:   "animal-1",
		OccurredAt: time.Now().UTC(),
	})

	require.NoError(t, err)
	assert.Empty(t, repo.byID)
}

func TestNotificationMarkRead(t *testing.T) {
	repo := newNotificationRepoStub(&models.Notification{
		ID:          "notification-1",
		RecipientID: "user-1",
		DedupeKey:   "key-1",
	})
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	require.NoError(t, svc.MarkRead(context.Background(), "notification-1", "user-1"))
	assert.Equal(t, []string{"notification-1"}, repo.marked)

	// Marking twice is a no-op, not an error.
	require.NoError(t, svc.MarkRead(context.Background(), "notification-1", "user-1"))
	assert.Len(t, repo.marked, 1)
}

func TestNotificationMarkReadWrongRecipient(t *testing.T) {
	repo := newNotificationRepoStub(&models.Notification{
		ID:          "notification-1",
		RecipientID: "user-1",
		DedupeKey:   "key-1",
	})
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	err := svc.MarkRead(context.Background(), "notification-1", "user-2")

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, repo.marked)
}

func TestNotificationMarkReadNotFound(t *testing.T) {
	svc := NewNotificationService(newNotificationRepoStub(), &staffDirectoryStub{}, nil)

	err := svc.MarkRead(context.Background(), "missing", "user-1")

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestNotificationDelete(t *testing.T) {
	repo := newNotificationRepoStub(&models.Notification{
		ID:          "notification-1",
		RecipientID: "user-1",
		DedupeKey:   "key-1",
	})
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	require.NoError(t, svc.Delete(context.Background(), "notification-1", "user-1"))
	assert.Equal(t, []string{"notification-1"}, repo.deleted)

	err := svc.Delete(context.Background(), "notification-1", "user-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestNotificationListAndUnreadCount(t *testing.T) {
	repo := newNotificationRepoStub(
		&models.Notification{ID: "notification-1", RecipientID: "user-1", DedupeKey: "key-1"},
		&models.Notification{ID: "notification-2", RecipientID: "user-1", Read: true, DedupeKey: "key-2"},
		&models.Notification{ID: "notification-3", RecipientID: "user-2", DedupeKey: "key-3"},
	)
	svc := NewNotificationService(repo, &staffDirectoryStub{}, nil)

	notifications, pagination, err := svc.List(context.Background(), "user-1", NotificationListRequest{})
	require.NoError(t, err)
	assert.Len(t, notifications, 2)
	assert.Equal(t, 1, pagination.Page)

	unread, _, err := svc.List(context.Background(), "user-1", NotificationListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	count, err := svc.UnreadCount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
