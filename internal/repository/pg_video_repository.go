package repository

import (
	"context"
	"errors"

	"github.com/afterword/backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgVideoRepository reads video metadata and release shares.
type PgVideoRepository struct {
	pool *pgxpool.Pool
}

// NewPgVideoRepository creates a PgVideoRepository backed by the given pool.
func NewPgVideoRepository(pool *pgxpool.Pool) *PgVideoRepository {
	return &PgVideoRepository{pool: pool}
}

var _ VideoRepository = (*PgVideoRepository)(nil)

const videoSelectCols = `v.id, v.owner_id, v.title, v.storage_key, v.visibility, v.released_at, v.created_at`

func scanVideo(scan func(...any) error) (*model.Video, error) {
	var v model.Video
	var visibility string
	if err := scan(&v.ID, &v.OwnerID, &v.Title, &v.StorageKey, &visibility, &v.ReleasedAt, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Visibility = model.Visibility(visibility)
	return &v, nil
}

func collectVideos(rows pgx.Rows) ([]*model.Video, error) {
	defer rows.Close()
	var videos []*model.Video
	for rows.Next() {
		v, err := scanVideo(rows.Scan)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *PgVideoRepository) GetByID(ctx context.Context, id string) (*model.Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoSelectCols+` FROM videos v WHERE v.id = $1`, id)
	v, err := scanVideo(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *PgVideoRepository) ListSharedWith(ctx context.Context, viewerID string) ([]*model.Video, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT `+videoSelectCols+`
		 FROM videos v
		 JOIN video_shares s ON s.video_id = v.id
		 JOIN contacts c ON c.id = s.contact_id
		 WHERE c.target_user_id = $1 AND c.removed_at IS NULL
		 ORDER BY v.created_at DESC`, viewerID)
	if err != nil {
		return nil, err
	}
	return collectVideos(rows)
}

func (r *PgVideoRepository) HasShare(ctx context.Context, videoID, viewerID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM video_shares s
		   JOIN contacts c ON c.id = s.contact_id
		   WHERE s.video_id = $1 AND c.target_user_id = $2 AND c.removed_at IS NULL)`,
		videoID, viewerID).Scan(&ok)
	return ok, err
}
