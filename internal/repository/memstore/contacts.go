package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/google/uuid"
)

// Contacts is the ContactRepository view of a Store.
type Contacts struct{ s *Store }

var _ repository.ContactRepository = (*Contacts)(nil)

func (s *Store) Contacts() *Contacts { return &Contacts{s: s} }

func sortContacts(cs []*model.Contact) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Type != cs[j].Type {
			return cs[i].Type == model.ContactTypeTrusted
		}
		if cs[i].IsPrimary != cs[j].IsPrimary {
			return cs[i].IsPrimary
		}
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

func (st *state) clearPrimary(ownerID string, t model.ContactType, exceptID string, now time.Time) {
	for _, c := range st.contacts {
		if c.OwnerID == ownerID && c.Type == t && c.IsPrimary && !c.IsRemoved() && c.ID != exceptID {
			c.IsPrimary = false
			c.UpdatedAt = now
		}
	}
}

func (st *state) liveDuplicate(ownerID, email, exceptID string) bool {
	for _, c := range st.contacts {
		if c.OwnerID == ownerID && !c.IsRemoved() && c.ID != exceptID && model.SameEmail(c.Email, email) {
			return true
		}
	}
	return false
}

func (r *Contacts) Create(ctx context.Context, c *model.Contact) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := model.NormalizeEmail(c.Email)
	if s.st.liveDuplicate(c.OwnerID, email, "") {
		return repository.ErrConflict
	}
	now := s.now()
	if c.IsPrimary {
		s.st.clearPrimary(c.OwnerID, c.Type, "", now)
	}
	c.ID = uuid.NewString()
	c.Email = email
	c.CreatedAt = now
	c.UpdatedAt = now
	s.st.contacts[c.ID] = copyContact(c)
	return nil
}

func (r *Contacts) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.contacts[id]
	if !ok || c.IsRemoved() {
		return nil, repository.ErrNotFound
	}
	return copyContact(c), nil
}

func (r *Contacts) ListByOwner(ctx context.Context, ownerID string) ([]*model.Contact, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Contact
	for _, c := range s.st.contacts {
		if c.OwnerID == ownerID && !c.IsRemoved() {
			out = append(out, copyContact(c))
		}
	}
	sortContacts(out)
	return out, nil
}

func (r *Contacts) Update(ctx context.Context, c *model.Contact) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.st.contacts[c.ID]
	if !ok || cur.IsRemoved() {
		return repository.ErrNotFound
	}
	now := s.now()
	if c.IsPrimary {
		s.st.clearPrimary(cur.OwnerID, c.Type, c.ID, now)
	}
	cur.FullName = c.FullName
	cur.Phone = c.Phone
	cur.RelationshipLabel = c.RelationshipLabel
	cur.Type = c.Type
	cur.Role = nil
	if c.Role != nil {
		role := *c.Role
		cur.Role = &role
	}
	cur.IsPrimary = c.IsPrimary
	cur.UpdatedAt = now
	c.UpdatedAt = now
	return nil
}

func (r *Contacts) Remove(ctx context.Context, id string, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.contacts[id]
	if !ok || c.IsRemoved() {
		return repository.ErrNotFound
	}
	c.RemovedAt = &at
	c.IsPrimary = false
	c.UpdatedAt = s.now()
	return nil
}

func (r *Contacts) ListUnregistered(ctx context.Context, afterID string, limit int) ([]*model.Contact, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Contact
	for _, c := range s.st.contacts {
		if !c.InvitationStatus.IsRegistered() && !c.IsRemoved() && c.ID > afterID {
			out = append(out, copyContact(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Contacts) MarkRegistered(ctx context.Context, id, targetUserID string, at time.Time) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.contacts[id]
	if !ok || c.IsRemoved() || c.InvitationStatus.IsRegistered() {
		return false, nil
	}
	c.InvitationStatus = model.StatusRegistered
	target := targetUserID
	c.TargetUserID = &target
	if c.ConfirmedAt == nil {
		c.ConfirmedAt = &at
	}
	c.UpdatedAt = s.now()
	return true, nil
}

func (r *Contacts) ListTrustedByEmail(ctx context.Context, email string) ([]*model.TrustedRelationship, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*model.Contact
	for _, c := range s.st.contacts {
		if c.Type == model.ContactTypeTrusted && !c.IsRemoved() && model.SameEmail(c.Email, email) {
			matches = append(matches, c)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })

	out := make([]*model.TrustedRelationship, 0, len(matches))
	for _, c := range matches {
		owner, ok := s.st.users[c.OwnerID]
		if !ok {
			continue
		}
		rel := &model.TrustedRelationship{
			ContactID:        c.ID,
			OwnerID:          c.OwnerID,
			OwnerDisplayName: owner.DisplayName(),
			OwnerEmail:       owner.Email,
			IsPrimary:        c.IsPrimary,
			InvitationStatus: c.InvitationStatus,
			OwnerDeceasedAt:  owner.DeceasedAt,
			CreatedAt:        c.CreatedAt,
		}
		if c.Role != nil {
			rel.Role = *c.Role
		}
		out = append(out, rel)
	}
	return out, nil
}

func (r *Contacts) FindTrustedLink(ctx context.Context, ownerID, targetUserID string) (*model.Contact, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var links []*model.Contact
	for _, c := range s.st.contacts {
		if c.OwnerID == ownerID && c.Type == model.ContactTypeTrusted && !c.IsRemoved() &&
			c.InvitationStatus.IsRegistered() && c.TargetUserID != nil && *c.TargetUserID == targetUserID {
			links = append(links, c)
		}
	}
	if len(links) == 0 {
		return nil, repository.ErrNotFound
	}
	sortContacts(links)
	return copyContact(links[0]), nil
}
