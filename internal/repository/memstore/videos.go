package memstore

import (
	"context"
	"sort"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
)

// Videos is the VideoRepository view of a Store.
type Videos struct{ s *Store }

var _ repository.VideoRepository = (*Videos)(nil)

func (s *Store) Videos() *Videos { return &Videos{s: s} }

func (r *Videos) GetByID(ctx context.Context, id string) (*model.Video, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.videos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// linkedContacts returns the IDs of live contact rows that point at viewerID.
func (st *state) linkedContacts(viewerID string) map[string]bool {
	ids := make(map[string]bool)
	for _, c := range st.contacts {
		if !c.IsRemoved() && c.TargetUserID != nil && *c.TargetUserID == viewerID {
			ids[c.ID] = true
		}
	}
	return ids
}

func (r *Videos) ListSharedWith(ctx context.Context, viewerID string) ([]*model.Video, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	linked := s.st.linkedContacts(viewerID)
	seen := make(map[string]bool)
	var out []*model.Video
	for k := range s.st.shares {
		if !linked[k.contactID] || seen[k.videoID] {
			continue
		}
		seen[k.videoID] = true
		if v, ok := s.st.videos[k.videoID]; ok {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Videos) HasShare(ctx context.Context, videoID, viewerID string) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.st.linkedContacts(viewerID) {
		if _, ok := s.st.shares[shareKey{videoID: videoID, contactID: id}]; ok {
			return true, nil
		}
	}
	return false, nil
}
