package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trustedContact(ownerID, email string, primary bool) *model.Contact {
	role := model.RoleExecutor
	return &model.Contact{
		OwnerID:          ownerID,
		Email:            email,
		FullName:         "Someone",
		Type:             model.ContactTypeTrusted,
		Role:             &role,
		IsPrimary:        primary,
		InvitationStatus: model.StatusPendingConfirmation,
	}
}

func TestContacts_CreateRejectsLiveDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()
	repo := s.Contacts()

	require.NoError(t, repo.Create(ctx, trustedContact("owner", "Ann@Example.com", false)))
	err := repo.Create(ctx, trustedContact("owner", "  ann@example.COM ", false))
	assert.ErrorIs(t, err, repository.ErrConflict)

	// another owner may hold the same address
	assert.NoError(t, repo.Create(ctx, trustedContact("other", "ann@example.com", false)))
}

func TestContacts_RemoveFreesEmail(t *testing.T) {
	ctx := context.Background()
	repo := New().Contacts()

	c := trustedContact("owner", "ann@example.com", false)
	require.NoError(t, repo.Create(ctx, c))
	require.NoError(t, repo.Remove(ctx, c.ID, time.Now()))

	_, err := repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, repo.Create(ctx, trustedContact("owner", "ann@example.com", false)))
}

func TestContacts_SinglePrimaryPerType(t *testing.T) {
	ctx := context.Background()
	repo := New().Contacts()

	a := trustedContact("owner", "a@example.com", true)
	b := trustedContact("owner", "b@example.com", true)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	list, err := repo.ListByOwner(ctx, "owner")
	require.NoError(t, err)
	primaries := 0
	for _, c := range list {
		if c.IsPrimary {
			primaries++
			assert.Equal(t, b.ID, c.ID)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestContacts_MarkRegisteredIsOneWay(t *testing.T) {
	ctx := context.Background()
	repo := New().Contacts()

	c := trustedContact("owner", "a@example.com", false)
	require.NoError(t, repo.Create(ctx, c))

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ok, err := repo.MarkRegistered(ctx, c.ID, "user-1", first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRegistered(ctx, c.ID, "user-2", first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRegistered, got.InvitationStatus)
	assert.Equal(t, "user-1", *got.TargetUserID)
	assert.True(t, got.ConfirmedAt.Equal(first))
}

func TestStore_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner := s.AddUser(&model.User{Email: "owner@example.com"})
	v := s.AddVideo(&model.Video{OwnerID: owner.ID, Title: "hi", Visibility: model.VisibilityTrustedRelease})
	c := trustedContact(owner.ID, "t@example.com", false)
	require.NoError(t, s.Contacts().Create(ctx, c))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(st repository.ReleaseStore) error {
		ok, err := st.MarkDeceased(ctx, owner.ID, "caller", time.Now())
		require.NoError(t, err)
		require.True(t, ok)
		n, err := st.GrantShares(ctx, v.ID, []string{c.ID}, model.ShareReasonRelease, time.Now())
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := s.Users().FindByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.False(t, u.IsDeceased())
	assert.Empty(t, s.Shares())
}

func TestStore_GrantSharesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	v := s.AddVideo(&model.Video{OwnerID: "o", Visibility: model.VisibilityTrustedRelease})

	err := s.RunInTx(ctx, func(st repository.ReleaseStore) error {
		n, err := st.GrantShares(ctx, v.ID, []string{"c1", "c2"}, model.ShareReasonRelease, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = st.GrantShares(ctx, v.ID, []string{"c1"}, model.ShareReasonRelease, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, s.Shares(), 2)
}
