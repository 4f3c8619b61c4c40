package service

import (
	"context"
	"sync"
	"testing"

	"github.com/afterword/backend/internal/identity"
	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository/memstore"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// shared fixtures
// ---------------------------------------------------------------------------

type mockResolver struct {
	resolveFunc func(ctx context.Context, email string) (identity.Resolution, error)
}

func (m *mockResolver) Resolve(ctx context.Context, email string) (identity.Resolution, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, email)
	}
	return identity.Resolution{}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	invited  []*model.Contact
	releases []*model.ReleaseEvent
}

func (n *recordingNotifier) ContactInvited(_ context.Context, _ *model.User, c *model.Contact) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invited = append(n.invited, c)
}

func (n *recordingNotifier) ReleaseCompleted(_ context.Context, ev *model.ReleaseEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.releases = append(n.releases, ev)
}

func (n *recordingNotifier) releaseCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.releases)
}

type world struct {
	store    *memstore.Store
	notifier *recordingNotifier
	contacts ContactService
	life     LifecycleService
	gate     AuthorizationGate
	release  ReleaseService
}

func newWorld(t *testing.T, policy ReleasePolicy) *world {
	t.Helper()
	store := memstore.New()
	n := &recordingNotifier{}
	resolver := identity.NewDirectoryResolver(store.Users(), nil)
	gate := NewAuthorizationGate(store.Contacts(), store.Users(), policy)
	return &world{
		store:    store,
		notifier: n,
		contacts: NewContactService(store.Contacts(), store.Users(), resolver, n),
		life:     NewLifecycleService(store.Contacts(), resolver, nil),
		gate:     gate,
		release:  NewReleaseService(gate, store.Users(), store.Audit(), store, n, nil),
	}
}

func (w *world) user(email, name string) *model.User {
	return w.store.AddUser(&model.User{Email: email, Name: name})
}

func (w *world) addTrusted(t *testing.T, owner *model.User, email string, role model.Role) *model.Contact {
	t.Helper()
	c, err := w.contacts.Add(context.Background(), owner.ID, model.ContactInput{
		Email:    email,
		FullName: "Trusted " + email,
		Type:     model.ContactTypeTrusted,
		Role:     &role,
	})
	require.NoError(t, err)
	return c
}

func (w *world) addRegular(t *testing.T, owner *model.User, email string) *model.Contact {
	t.Helper()
	c, err := w.contacts.Add(context.Background(), owner.ID, model.ContactInput{
		Email:    email,
		FullName: "Regular " + email,
		Type:     model.ContactTypeRegular,
	})
	require.NoError(t, err)
	return c
}

func rolePtr(r model.Role) *model.Role { return &r }
