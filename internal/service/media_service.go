package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/afterword/backend/internal/storage"
)

// MediaURL is a short-lived link to a released video.
type MediaURL struct {
	VideoID   string    `json:"video_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MediaService serves videos released to the caller.
type MediaService interface {
	// ListReleased returns videos shared to contact rows linked to callerID.
	ListReleased(ctx context.Context, callerID string) ([]*model.Video, error)
	// SignedURL issues a link for one video. Every failed check returns
	// ErrForbidden.
	SignedURL(ctx context.Context, callerID, videoID string) (*MediaURL, error)
}

type mediaServiceImpl struct {
	videos repository.VideoRepository
	gate   AuthorizationGate
	signer storage.URLSigner
}

// NewMediaService creates a MediaService.
func NewMediaService(videos repository.VideoRepository, gate AuthorizationGate, signer storage.URLSigner) MediaService {
	return &mediaServiceImpl{videos: videos, gate: gate, signer: signer}
}

func (s *mediaServiceImpl) ListReleased(ctx context.Context, callerID string) ([]*model.Video, error) {
	return s.videos.ListSharedWith(ctx, callerID)
}

func (s *mediaServiceImpl) SignedURL(ctx context.Context, callerID, videoID string) (*MediaURL, error) {
	if !validID(videoID) {
		return nil, ErrForbidden
	}
	v, err := s.videos.GetByID(ctx, videoID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("load video: %w", err)
	}

	// Immediate shares to regular contacts need only the share row; released
	// media additionally needs the owner's death to be confirmed.
	if v.Visibility != model.VisibilityContacts {
		ok, err := s.gate.CanPerform(ctx, ActionViewReleasedMedia, callerID, v.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("authorize: %w", err)
		}
		if !ok {
			return nil, ErrForbidden
		}
	}
	shared, err := s.videos.HasShare(ctx, videoID, callerID)
	if err != nil {
		return nil, fmt.Errorf("check share: %w", err)
	}
	if !shared {
		return nil, ErrForbidden
	}

	u, exp, err := s.signer.SignedURL(ctx, v.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("sign url: %w", err)
	}
	logging.FromContext(ctx).Info("media url issued",
		slog.String("video_id", videoID), slog.String("caller_id", callerID))
	return &MediaURL{VideoID: videoID, URL: u, ExpiresAt: exp}, nil
}
