package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/straywatch/straywatch-api/internal/models"
)

const notificationColumns = `id, recipient_id, source_type, source_id, kind, message, dedupe_key, read, deleted, created_at`

// NotificationRepository manages persistence for fan-out notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a new repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert persists a notification. The dedupe key has a unique index, so a
// replayed event is dropped silently and the return reports whether a row was
// actually written.
func (r *NotificationRepository) Insert(ctx context.Context, notification *models.Notification) (bool, error) {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO notifications (id, recipient_id, source_type, source_id, kind, message, dedupe_key, read, deleted, created_at)
VALUES (:id, :recipient_id, :source_type, :source_id, :kind, :message, :dedupe_key, :read, :deleted, :created_at)
ON CONFLICT (dedupe_key) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, notification)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return affected == 1, nil
}

// GetByID fetches a single notification.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var notification models.Notification
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE id = $1 AND deleted = FALSE LIMIT 1", notificationColumns)
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, fmt.Errorf("get notification %s: %w", id, err)
	}
	return &notification, nil
}

// List returns notifications per provided filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := []string{"deleted = FALSE"}
	args := []interface{}{}
	if filter.RecipientID != "" {
		where = append(where, fmt.Sprintf("recipient_id = $%d", len(args)+1))
		args = append(args, filter.RecipientID)
	}
	if filter.UnreadOnly {
		where = append(where, "read = FALSE")
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

	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, whereClause, size, offset)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// UnreadCount counts unread, undeleted notifications for a recipient.
func (r *NotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE AND deleted = FALSE`
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("unread count for %s: %w", recipientID, err)
	}
	return count, nil
}

// MarkRead flips the read flag on one notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = TRUE WHERE id = $1", id); err != nil {
		return fmt.Errorf("mark notification read %s: %w", id, err)
	}
	return nil
}

// MarkAllRead flips the read flag on every unread notification of a recipient.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	query := `UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE AND deleted = FALSE`
	if _, err := r.db.ExecContext(ctx, query, recipientID); err != nil {
		return fmt.Errorf("mark all read for %s: %w", recipientID, err)
	}
	return nil
}

// SoftDelete hides a notification from the recipient without dropping the row.
func (r *NotificationRepository) SoftDelete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE notifications SET deleted = TRUE WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}
