// Package memstore is an in-memory implementation of the repository
// interfaces. It backs DATABASE_URL=memory and the service tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/google/uuid"
)

type shareKey struct {
	videoID   string
	contactID string
}

type state struct {
	users         map[string]*model.User
	contacts      map[string]*model.Contact
	videos        map[string]*model.Video
	shares        map[shareKey]*model.VideoShare
	audit         []*model.ConfirmationEvent
	notifications []*model.Notification
}

func newState() *state {
	return &state{
		users:    make(map[string]*model.User),
		contacts: make(map[string]*model.Contact),
		videos:   make(map[string]*model.Video),
		shares:   make(map[shareKey]*model.VideoShare),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range s.contacts {
		c.contacts[k] = copyContact(v)
	}
	for k, v := range s.videos {
		vv := *v
		c.videos[k] = &vv
	}
	for k, v := range s.shares {
		sh := *v
		c.shares[k] = &sh
	}
	c.audit = append([]*model.ConfirmationEvent(nil), s.audit...)
	c.notifications = append([]*model.Notification(nil), s.notifications...)
	return c
}

func copyContact(c *model.Contact) *model.Contact {
	cc := *c
	if c.Role != nil {
		r := *c.Role
		cc.Role = &r
	}
	if c.TargetUserID != nil {
		t := *c.TargetUserID
		cc.TargetUserID = &t
	}
	return &cc
}

// Store is safe for concurrent use. RunInTx holds the store lock for the
// whole callback, so release cascades are serialized.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	// FailRelease, when set, is returned by the next GrantShares call inside
	// RunInTx. Tests use it to force a cascade rollback.
	FailRelease error
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

var (
	_ repository.DB                     = (*Store)(nil)
	_ repository.ReleaseTx              = (*Store)(nil)
	_ repository.UserRepository         = (*Users)(nil)
	_ repository.AuditRepository        = (*Audit)(nil)
	_ repository.NotificationRepository = (*Notifications)(nil)
)

// Users is the UserRepository view of a Store.
type Users struct{ s *Store }

// Audit is the AuditRepository view of a Store.
type Audit struct{ s *Store }

// Notifications is the NotificationRepository view of a Store.
type Notifications struct{ s *Store }

func (s *Store) Users() *Users                 { return &Users{s: s} }
func (s *Store) Audit() *Audit                 { return &Audit{s: s} }
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// AddUser seeds an account. Missing IDs and timestamps are filled in.
func (s *Store) AddUser(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	s.st.users[u.ID] = &cp
	return u
}

// AddVideo seeds a video.
func (s *Store) AddVideo(v *model.Video) *model.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	if v.Visibility == "" {
		v.Visibility = model.VisibilityPrivate
	}
	cp := *v
	s.st.videos[v.ID] = &cp
	return v
}

// Shares returns every granted share, for assertions.
func (s *Store) Shares() []model.VideoShare {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.VideoShare, 0, len(s.st.shares))
	for _, sh := range s.st.shares {
		out = append(out, *sh)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VideoID != out[j].VideoID {
			return out[i].VideoID < out[j].VideoID
		}
		return out[i].ContactID < out[j].ContactID
	})
	return out
}

// ---- users ----

func (r *Users) FindByID(ctx context.Context, id string) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if model.SameEmail(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ---- audit ----

func (r *Audit) Record(ctx context.Context, ev *model.ConfirmationEvent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.recordConfirmation(ev, s.now())
	return nil
}

func (st *state) recordConfirmation(ev *model.ConfirmationEvent, now time.Time) {
	ev.ID = uuid.NewString()
	ev.CreatedAt = now
	cp := *ev
	st.audit = append(st.audit, &cp)
}

func (r *Audit) ListByOwner(ctx context.Context, ownerID string) ([]*model.ConfirmationEvent, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ConfirmationEvent
	for _, ev := range s.st.audit {
		if ev.TargetOwnerID == ownerID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- notifications ----

func (r *Notifications) Create(ctx context.Context, n *model.Notification) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	cp := *n
	s.st.notifications = append(s.st.notifications, &cp)
	return nil
}

func (r *Notifications) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Notification
	for i := len(s.st.notifications) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if n := s.st.notifications[i]; n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- release transaction ----

// RunInTx applies fn to a private copy of the store and publishes it only
// when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(store repository.ReleaseStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &txStore{st: s.st.clone(), now: s.now, fail: s.FailRelease}
	s.FailRelease = nil
	if err := fn(staged); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = staged.st
	return nil
}

type txStore struct {
	st   *state
	now  func() time.Time
	fail error
}

var _ repository.ReleaseStore = (*txStore)(nil)

func (t *txStore) MarkDeceased(ctx context.Context, ownerID, confirmedBy string, at time.Time) (bool, error) {
	u, ok := t.st.users[ownerID]
	if !ok || u.DeceasedAt != nil {
		return false, nil
	}
	u.DeceasedAt = &at
	by := confirmedBy
	u.DeceasedConfirmedBy = &by
	u.UpdatedAt = t.now()
	return true, nil
}

func (t *txStore) ListTrustedReleaseVideos(ctx context.Context, ownerID string) ([]*model.Video, error) {
	var out []*model.Video
	for _, v := range t.st.videos {
		if v.OwnerID == ownerID && v.Visibility == model.VisibilityTrustedRelease {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *txStore) ListContactsByType(ctx context.Context, ownerID string, ct model.ContactType) ([]*model.Contact, error) {
	var out []*model.Contact
	for _, c := range t.st.contacts {
		if c.OwnerID == ownerID && c.Type == ct && !c.IsRemoved() {
			out = append(out, copyContact(c))
		}
	}
	sortContacts(out)
	return out, nil
}

func (t *txStore) GrantShares(ctx context.Context, videoID string, contactIDs []string, reason string, at time.Time) (int, error) {
	if t.fail != nil {
		err := t.fail
		t.fail = nil
		return 0, err
	}
	if _, ok := t.st.videos[videoID]; !ok {
		return 0, errors.New("memstore: unknown video " + videoID)
	}
	n := 0
	for _, id := range contactIDs {
		k := shareKey{videoID: videoID, contactID: id}
		if _, ok := t.st.shares[k]; ok {
			continue
		}
		t.st.shares[k] = &model.VideoShare{VideoID: videoID, ContactID: id, Reason: reason, GrantedAt: at}
		n++
	}
	return n, nil
}

func (t *txStore) MarkVideoReleased(ctx context.Context, videoID string, at time.Time) error {
	v, ok := t.st.videos[videoID]
	if !ok {
		return repository.ErrNotFound
	}
	if v.ReleasedAt == nil {
		v.ReleasedAt = &at
	}
	return nil
}

func (t *txStore) RecordConfirmation(ctx context.Context, ev *model.ConfirmationEvent) error {
	t.st.recordConfirmation(ev, t.now())
	return nil
}
