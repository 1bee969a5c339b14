package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"auctionhouse/internal/domain"
)

type MySQLNotificationRepository struct {
	db *sql.DB
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

func (r *MySQLNotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
        INSERT INTO notifications (id, user_id, auction_id, kind, title, message, is_read, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.AuctionID, string(n.Kind), n.Title, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

func (r *MySQLNotificationRepository) GetNotificationsByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `
        SELECT id, user_id, auction_id, kind, title, message, is_read, created_at
        FROM notifications WHERE user_id = ?
        ORDER BY created_at DESC
    `
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var kind string

		err := rows.Scan(&n.ID, &n.UserID, &n.AuctionID, &kind, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		n.Kind = domain.NotificationKind(kind)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

func (r *MySQLNotificationRepository) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
