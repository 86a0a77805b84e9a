package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/straywatch/straywatch-api/internal/events"
	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

type notificationRepository interface {
	Insert(ctx context.Context, notification *models.Notification) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipientID string) error
	SoftDelete(ctx context.Context, id string) error
}

type staffDirectory interface {
	ListIDsByRoles(ctx context.Context, roles ...models.UserRole) ([]string, error)
}

// NotificationService translates domain events into per-recipient
// notifications and serves read-state queries. Delivery is idempotent: the
// fan-out key is (recipient, source type, source id, kind, event timestamp),
// so a replayed event inserts nothing.
type NotificationService struct {
	repo   notificationRepository
	staff  staffDirectory
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationRepository, staff staffDirectory, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, staff: staff, logger: logger}
}

// fanoutRoute resolves one event type into recipients, a kind and a message.
type fanoutRoute struct {
	kind       models.NotificationKind
	recipients func(ctx context.Context, s *NotificationService, event events.Event) []string
	message    func(event events.Event) string
}

// fanoutRoutes is the single dispatch table for the fan-out layer. Event
// types without an entry produce no notifications.
var fanoutRoutes = map[events.Type]fanoutRoute{
	events.IncidentSubmitted: {
		kind: models.KindNewReport,
		recipients: func(ctx context.Context, s *NotificationService, event events.Event) []string {
			ids, err := s.staff.ListIDsByRoles(ctx, models.RoleAdmin, models.RoleVeterinarian)
			if err != nil {
				s.logger.Warn("failed to resolve staff recipients", zap.Error(err))
				return nil
			}
			return ids
		},
		message: func(event events.Event) string {
			return "A new incident report is waiting for verification."
		},
	},
	events.IncidentVerified: {
		kind:       models.KindStatusUpdate,
		recipients: reporterOnly,
		message: func(event events.Event) string {
			return "Your incident report was verified and queued for dispatch."
		},
	},
	events.IncidentRejected: {
		kind:       models.KindStatusUpdate,
		recipients: reporterOnly,
		message: func(event events.Event) string {
			return "Your incident report was reviewed and rejected."
		},
	},
	events.IncidentDispatched: {
		kind: models.KindStatusUpdate,
		recipients: func(ctx context.Context, s *NotificationService, event events.Event) []string {
			return dedupe(event.StaffID, event.ReporterID)
		},
		message: func(event events.Event) string {
			return "A patrol was dispatched for the incident."
		},
	},
	events.IncidentResolved: {
		kind: models.KindStatusUpdate,
		recipients: func(ctx context.Context, s *NotificationService, event events.Event) []string {
			return dedupe(event.ReporterID, event.StaffID)
		},
		message: func(event events.Event) string {
			return "The incident was resolved."
		},
	},
	events.AnimalIntake: {
		kind:       models.KindPetCapture,
		recipients: rfidOwnerOnly,
		message: func(event events.Event) string {
			return "An animal matching your registered pet's tag was taken into custody."
		},
	},
	events.AnimalRedeemed: {
		kind:       models.KindRedemption,
		recipients: rfidOwnerOnly,
		message: func(event events.Event) string {
			return "Your pet was redeemed and is on its way home."
		},
	},
	events.AnimalAdopted: {
		kind: models.KindAdoption,
		recipients: func(ctx context.Context, s *NotificationService, event events.Event) []string {
			return dedupe(event.StaffID)
		},
		message: func(event events.Event) string {
			return "An animal you brought in was adopted."
		},
	},
}

func reporterOnly(ctx context.Context, s *NotificationService, event events.Event) []string {
	return dedupe(event.ReporterID)
}

func rfidOwnerOnly(ctx context.Context, s *NotificationService, event events.Event) []string {
	return dedupe(event.RFIDOwnerID)
}

func dedupe(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// OnEvent fans one domain event out to its recipients.
func (s *NotificationService) OnEvent(ctx context.Context, event events.Event) error {
	route, ok := fanoutRoutes[event.Type]
	if !ok {
		return nil
	}
	recipients := route.recipients(ctx, s, event)
	for _, recipient := range recipients {
		notification := &models.Notification{
			RecipientID: recipient,
			SourceType:  event.SourceType,
			SourceID:    event.SourceID,
			Kind:        route.kind,
			Message:     route.message(event),
			DedupeKey:   models.DedupeKey(recipient, event.SourceType, event.SourceID, route.kind, event.OccurredAt),
			CreatedAt:   event.OccurredAt,
		}
		inserted, err := s.repo.Insert(ctx, notification)
		if err != nil {
			return fmt.Errorf("fan out %s to %s: %w", event.Type, recipient, err)
		}
		if !inserted {
			s.logger.Debug("duplicate notification dropped",
				zap.String("event_type", string(event.Type)),
				zap.String("recipient", recipient),
			)
		}
	}
	return nil
}

// NotificationListRequest describes filters for listing notifications.
type NotificationListRequest struct {
	UnreadOnly bool `json:"unread_only"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
}

// List returns the caller's notifications with pagination.
func (s *NotificationService) List(ctx context.Context, userID string, req NotificationListRequest) ([]models.Notification, *models.Pagination, error) {
	filter := models.NotificationFilter{
		RecipientID: userID,
		UnreadOnly:  req.UnreadOnly,
		Page:        req.Page,
		PageSize:    req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return notifications, pagination, nil
}

// UnreadCount returns the caller's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one notification as read. Only the recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	notification, err := s.getOwned(ctx, notificationID, userID)
	if err != nil {
		return err
	}
	if notification.Read {
		return nil
	}
	if err := s.repo.MarkRead(ctx, notificationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flags every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

// Delete soft-removes one notification. Only the recipient may do so.
func (s *NotificationService) Delete(ctx context.Context, notificationID, userID string) error {
	if _, err := s.getOwned(ctx, notificationID, userID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, notificationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

func (s *NotificationService) getOwned(ctx context.Context, notificationID, userID string) (*models.Notification, error) {
	notification, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch notification")
	}
	if notification.RecipientID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	return notification, nil
}
