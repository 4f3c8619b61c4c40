package repository

import (
	"context"
	"time"

	"github.com/afterword/backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgReleaseTx runs the release cascade in one PostgreSQL transaction.
type PgReleaseTx struct {
	pool *pgxpool.Pool
}

// NewPgReleaseTx creates a PgReleaseTx backed by the given pool.
func NewPgReleaseTx(pool *pgxpool.Pool) *PgReleaseTx {
	return &PgReleaseTx{pool: pool}
}

var _ ReleaseTx = (*PgReleaseTx)(nil)

// RunInTx commits when fn returns nil and rolls back otherwise.
func (t *PgReleaseTx) RunInTx(ctx context.Context, fn func(store ReleaseStore) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgReleaseStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgReleaseStore struct {
	q querier
}

var _ ReleaseStore = (*pgReleaseStore)(nil)

// MarkDeceased only succeeds for a living owner. Row locking on the UPDATE
// makes a concurrent second confirmer see zero affected rows.
func (s *pgReleaseStore) MarkDeceased(ctx context.Context, ownerID, confirmedBy string, at time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET deceased_at = $2, deceased_confirmed_by = $3, updated_at = NOW()
		 WHERE id = $1 AND deceased_at IS NULL`,
		ownerID, at, confirmedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgReleaseStore) ListTrustedReleaseVideos(ctx context.Context, ownerID string) ([]*model.Video, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+videoSelectCols+` FROM videos v
		 WHERE v.owner_id = $1 AND v.visibility = $2
		 ORDER BY v.created_at`,
		ownerID, string(model.VisibilityTrustedRelease))
	if err != nil {
		return nil, err
	}
	return collectVideos(rows)
}

func (s *pgReleaseStore) ListContactsByType(ctx context.Context, ownerID string, t model.ContactType) ([]*model.Contact, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+contactSelectCols+` FROM contacts
		 WHERE owner_id = $1 AND contact_type = $2 AND removed_at IS NULL
		 ORDER BY created_at`,
		ownerID, string(t))
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// GrantShares never revokes; existing pairs are left untouched.
func (s *pgReleaseStore) GrantShares(ctx context.Context, videoID string, contactIDs []string, reason string, at time.Time) (int, error) {
	if len(contactIDs) == 0 {
		return 0, nil
	}
	tag, err := s.q.Exec(ctx,
		`INSERT INTO video_shares (video_id, contact_id, reason, granted_at)
		 SELECT $1, unnest($2::uuid[]), $3, $4
		 ON CONFLICT (video_id, contact_id) DO NOTHING`,
		videoID, contactIDs, reason, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *pgReleaseStore) MarkVideoReleased(ctx context.Context, videoID string, at time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE videos SET released_at = COALESCE(released_at, $2) WHERE id = $1`, videoID, at)
	return err
}

func (s *pgReleaseStore) RecordConfirmation(ctx context.Context, ev *model.ConfirmationEvent) error {
	return recordConfirmation(ctx, s.q, ev)
}
