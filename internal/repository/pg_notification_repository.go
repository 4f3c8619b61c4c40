package repository

import (
	"context"

	"github.com/afterword/backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgNotificationRepository stores in-app notifications.
type PgNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationRepository creates a PgNotificationRepository backed by the given pool.
func NewPgNotificationRepository(pool *pgxpool.Pool) *PgNotificationRepository {
	return &PgNotificationRepository{pool: pool}
}

var _ NotificationRepository = (*PgNotificationRepository)(nil)

func (r *PgNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, kind, title, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		n.UserID, string(n.Kind), n.Title, n.Body,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *PgNotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, kind, title, body, created_at, read_at
		 FROM notifications WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var n model.Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		n.Kind = model.NotificationKind(kind)
		out = append(out, &n)
	}
	return out, rows.Err()
}
