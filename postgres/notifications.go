package postgres

import (
	"context"
	"fmt"

	"boxoffice/entity"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func CreateNotificationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS notifications (
		notification_id UUID PRIMARY KEY,
		customer_id UUID NOT NULL REFERENCES customers (customer_id),
		title VARCHAR(200) NOT NULL,
		message TEXT NOT NULL,
		kind VARCHAR(20) NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);`)
	return err
}

type NotificationRepo struct {
	db *sqlx.DB
}

func NewNotificationRepo(db *sqlx.DB) NotificationRepo {
	return NotificationRepo{
		db: db,
	}
}

// Add is idempotent on notification_id so redelivered purchase events
// do not duplicate confirmations.
func (r NotificationRepo) Add(ctx context.Context, n entity.Notification) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO notifications
		(notification_id, customer_id, title, message, kind, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT DO NOTHING;`,
		n.ID, n.CustomerID, n.Title, n.Message, n.Kind, n.Read, n.CreatedAt)
	return err
}

func (r NotificationRepo) ListForCustomer(ctx context.Context, customerID string) ([]entity.Notification, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT notification_id, customer_id, title,
		message, kind, read, created_at
		FROM notifications WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []entity.Notification
	for rows.Next() {
		var n entity.Notification
		if err := rows.Scan(&n.ID, &n.CustomerID, &n.Title, &n.Message,
			&n.Kind, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (r NotificationRepo) MarkRead(ctx context.Context, notificationID, customerID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE
		WHERE notification_id = $1 AND customer_id = $2`, notificationID, customerID)
	if err != nil {
		return fmt.Errorf("executing update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotificationNotFound
	}

	return nil
}
