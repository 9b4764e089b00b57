package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dealpipe.io/dealpipe/internal/domain"
)

// NotificationRepo persists in-app inbox notifications.
type NotificationRepo struct {
	pool *pgxpool.Pool
}

// NewNotificationRepo creates a notification repository.
func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Insert stores one notification.
func (r *NotificationRepo) Insert(ctx context.Context, n *domain.Notification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, recipient, type, title, message, resource_type, resource_id, read)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false)`,
		n.ID, n.Recipient, n.Type, n.Title, n.Message, n.ResourceType, n.ResourceID)
	if err != nil {
		return fmt.Errorf("insert notification for %s: %w", n.Recipient, err)
	}
	return nil
}

// ListByRecipient returns a recipient's notifications, newest first.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	query := `SELECT id, recipient, type, title, message, resource_type, resource_id, read, created_at
	          FROM notifications WHERE recipient = $1`
	if unreadOnly {
		query += ` AND read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, recipient, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", recipient, err)
	}
	defer rows.Close()

	var items []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Type, &n.Title, &n.Message,
			&n.ResourceType, &n.ResourceID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, &n)
	}
	return items, rows.Err()
}

// MarkRead marks one notification read. Scoped to the recipient so users
// cannot touch each other's inboxes.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, recipient string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND recipient = $2`, id, recipient)
	if err != nil {
		return false, fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExistsSince reports whether a notification of the given type already
// exists for the recipient and resource newer than since. Keeps the
// stale sweep from re-alerting every run.
func (r *NotificationRepo) ExistsSince(ctx context.Context, recipient, ntype, resourceID string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications
		   WHERE recipient = $1 AND type = $2 AND resource_id = $3 AND created_at >= $4
		 )`, recipient, ntype, resourceID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification existence: %w", err)
	}
	return exists, nil
}

// DeleteReadBefore removes read notifications older than the cutoff and
// returns how many were dropped.
func (r *NotificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE read = true AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
