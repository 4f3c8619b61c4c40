package repository

import (
	"context"

	"github.com/afterword/backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgAuditRepository stores the deceased-confirmation audit trail.
type PgAuditRepository struct {
	pool *pgxpool.Pool
}

// NewPgAuditRepository creates a PgAuditRepository backed by the given pool.
func NewPgAuditRepository(pool *pgxpool.Pool) *PgAuditRepository {
	return &PgAuditRepository{pool: pool}
}

var _ AuditRepository = (*PgAuditRepository)(nil)

func recordConfirmation(ctx context.Context, q querier, ev *model.ConfirmationEvent) error {
	// target_owner_id is free text: rejected attempts may name an owner that
	// does not exist.
	return q.QueryRow(ctx,
		`INSERT INTO deceased_confirmations
		   (target_owner_id, caller_id, outcome, verification_method, notes, grants, detail)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''))
		 RETURNING id, created_at`,
		ev.TargetOwnerID, ev.CallerID, string(ev.Outcome), ev.VerificationMethod, ev.Notes, ev.Grants, ev.Detail,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// Record inserts one audit row outside any release transaction.
func (r *PgAuditRepository) Record(ctx context.Context, ev *model.ConfirmationEvent) error {
	return recordConfirmation(ctx, r.pool, ev)
}

// ListByOwner returns the attempts against ownerID, oldest first.
func (r *PgAuditRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.ConfirmationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, target_owner_id, caller_id, outcome, COALESCE(verification_method, ''),
		        COALESCE(notes, ''), grants, COALESCE(detail, ''), created_at
		 FROM deceased_confirmations
		 WHERE target_owner_id = $1
		 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.ConfirmationEvent
	for rows.Next() {
		var ev model.ConfirmationEvent
		var outcome string
		if err := rows.Scan(&ev.ID, &ev.TargetOwnerID, &ev.CallerID, &outcome, &ev.VerificationMethod,
			&ev.Notes, &ev.Grants, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Outcome = model.ConfirmationOutcome(outcome)
		events = append(events, &ev)
	}
	return events, rows.Err()
}
