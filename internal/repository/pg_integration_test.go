//go:build integration

package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// testPool is shared by every integration test; each test seeds its own
// owners so rows never collide.
var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("afterword"),
		tcpostgres.WithUsername("afterword"),
		tcpostgres.WithPassword("afterword"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		slog.Error("failed to start postgres container", "error", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			slog.Error("connection string", "error", err)
			return 1
		}

		mg, err := NewMigrator(slog.New(slog.NewTextHandler(io.Discard, nil)), dsn, migrations.FS)
		if err != nil {
			slog.Error("migrator", "error", err)
			return 1
		}
		err = mg.Up()
		_ = mg.Close()
		if err != nil {
			slog.Error("migrate up", "error", err)
			return 1
		}

		testPool, err = NewPool(ctx, dsn)
		if err != nil {
			slog.Error("pool", "error", err)
			return 1
		}
		defer testPool.Close()
		return m.Run()
	}()
	os.Exit(code)
}

func seedUser(t *testing.T, email string) string {
	t.Helper()
	var id string
	err := testPool.QueryRow(context.Background(),
		`INSERT INTO users (email, name) VALUES ($1, $2) RETURNING id`, email, "User "+email).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedVideo(t *testing.T, ownerID string, vis model.Visibility) string {
	t.Helper()
	var id string
	err := testPool.QueryRow(context.Background(),
		`INSERT INTO videos (owner_id, title, storage_key, visibility) VALUES ($1, 'msg', 'videos/x.mp4', $2) RETURNING id`,
		ownerID, string(vis)).Scan(&id)
	require.NoError(t, err)
	return id
}

func trusted(ownerID, email string, primary bool) *model.Contact {
	role := model.RoleExecutor
	return &model.Contact{
		OwnerID:          ownerID,
		Email:            email,
		FullName:         "Trusted",
		Type:             model.ContactTypeTrusted,
		Role:             &role,
		IsPrimary:        primary,
		InvitationStatus: model.StatusPendingConfirmation,
	}
}

func uniqueEmail(t *testing.T, local string) string {
	t.Helper()
	return local + "+" + uuid.NewString()[:8] + "@example.com"
}

func TestPgContactRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewPgContactRepository(testPool)
	owner := seedUser(t, uniqueEmail(t, "owner"))
	email := uniqueEmail(t, "ann")

	c := trusted(owner, "  "+email+"  ", false)
	require.NoError(t, repo.Create(ctx, c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, email, c.Email)

	err := repo.Create(ctx, trusted(owner, email, false))
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, repo.Remove(ctx, c.ID, time.Now()))
	_, err = repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, repo.Create(ctx, trusted(owner, email, false)), "removed rows free the address")
}

func TestPgContactRepository_ListUnregisteredPagesByID(t *testing.T) {
	ctx := context.Background()
	repo := NewPgContactRepository(testPool)
	owner := seedUser(t, uniqueEmail(t, "owner"))

	mine := map[string]bool{}
	for _, local := range []string{"p1", "p2", "p3"} {
		c := trusted(owner, uniqueEmail(t, local), false)
		require.NoError(t, repo.Create(ctx, c))
		mine[c.ID] = true
	}
	done := trusted(owner, uniqueEmail(t, "done"), false)
	require.NoError(t, repo.Create(ctx, done))
	_, err := repo.MarkRegistered(ctx, done.ID, uuid.NewString(), time.Now())
	require.NoError(t, err)

	var (
		after string
		seen  []string
	)
	for {
		page, err := repo.ListUnregistered(ctx, after, 2)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page), 2)
		if len(page) == 0 {
			break
		}
		for _, c := range page {
			if after != "" {
				require.Greater(t, c.ID, after, "ids ascend across pages")
			}
			after = c.ID
			seen = append(seen, c.ID)
		}
	}

	found := 0
	for _, id := range seen {
		assert.NotEqual(t, done.ID, id)
		if mine[id] {
			found++
		}
	}
	assert.Equal(t, 3, found)

	all, err := repo.ListUnregistered(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, len(seen), "limit 0 returns every row")
}

func TestPgContactRepository_SinglePrimary(t *testing.T) {
	ctx := context.Background()
	repo := NewPgContactRepository(testPool)
	owner := seedUser(t, uniqueEmail(t, "owner"))

	a := trusted(owner, uniqueEmail(t, "a"), true)
	b := trusted(owner, uniqueEmail(t, "b"), true)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	list, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "primary sorts first")
	assert.True(t, list[0].IsPrimary)
	assert.False(t, list[1].IsPrimary)

	a.IsPrimary = true
	require.NoError(t, repo.Update(ctx, a))
	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPrimary)
}

func TestPgContactRepository_MarkRegisteredConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewPgContactRepository(testPool)
	owner := seedUser(t, uniqueEmail(t, "owner"))
	heirEmail := uniqueEmail(t, "heir")
	heir := seedUser(t, heirEmail)

	c := trusted(owner, heirEmail, false)
	require.NoError(t, repo.Create(ctx, c))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkRegistered(ctx, c.ID, heir, time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	link, err := repo.FindTrustedLink(ctx, owner, heir)
	require.NoError(t, err)
	assert.Equal(t, c.ID, link.ID)

	rels, err := repo.ListTrustedByEmail(ctx, heirEmail)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, owner, rels[0].OwnerID)
	assert.Equal(t, model.StatusRegistered, rels[0].InvitationStatus)
}

func TestPgReleaseTx_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	contacts := NewPgContactRepository(testPool)
	users := NewPgUserRepository(testPool)
	releaseTx := NewPgReleaseTx(testPool)

	owner := seedUser(t, uniqueEmail(t, "owner"))
	caller := seedUser(t, uniqueEmail(t, "caller"))
	video := seedVideo(t, owner, model.VisibilityTrustedRelease)
	seedVideo(t, owner, model.VisibilityPrivate)
	c := trusted(owner, uniqueEmail(t, "t"), false)
	require.NoError(t, contacts.Create(ctx, c))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		grants int
		wins   int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := releaseTx.RunInTx(ctx, func(st ReleaseStore) error {
				now := time.Now()
				ok, err := st.MarkDeceased(ctx, owner, caller, now)
				if err != nil || !ok {
					return err
				}
				videos, err := st.ListTrustedReleaseVideos(ctx, owner)
				if err != nil {
					return err
				}
				list, err := st.ListContactsByType(ctx, owner, model.ContactTypeTrusted)
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(list))
				for _, tc := range list {
					ids = append(ids, tc.ID)
				}
				n := 0
				for _, v := range videos {
					added, err := st.GrantShares(ctx, v.ID, ids, model.ShareReasonRelease, now)
					if err != nil {
						return err
					}
					n += added
					if err := st.MarkVideoReleased(ctx, v.ID, now); err != nil {
						return err
					}
				}
				mu.Lock()
				wins++
				grants += n
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, grants)

	u, err := users.FindByID(ctx, owner)
	require.NoError(t, err)
	assert.True(t, u.IsDeceased())

	v, err := NewPgVideoRepository(testPool).GetByID(ctx, video)
	require.NoError(t, err)
	assert.NotNil(t, v.ReleasedAt)
}

func TestPgReleaseTx_RollbackLeavesOwnerAlive(t *testing.T) {
	ctx := context.Background()
	owner := seedUser(t, uniqueEmail(t, "owner"))
	caller := seedUser(t, uniqueEmail(t, "caller"))
	boom := errors.New("boom")

	err := NewPgReleaseTx(testPool).RunInTx(ctx, func(st ReleaseStore) error {
		ok, err := st.MarkDeceased(ctx, owner, caller, time.Now())
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := NewPgUserRepository(testPool).FindByID(ctx, owner)
	require.NoError(t, err)
	assert.False(t, u.IsDeceased())
}

func TestPgVideoRepository_Shares(t *testing.T) {
	ctx := context.Background()
	contacts := NewPgContactRepository(testPool)
	videos := NewPgVideoRepository(testPool)

	owner := seedUser(t, uniqueEmail(t, "owner"))
	viewerEmail := uniqueEmail(t, "viewer")
	viewer := seedUser(t, viewerEmail)
	video := seedVideo(t, owner, model.VisibilityTrustedRelease)

	c := trusted(owner, viewerEmail, false)
	require.NoError(t, contacts.Create(ctx, c))
	_, err := contacts.MarkRegistered(ctx, c.ID, viewer, time.Now())
	require.NoError(t, err)

	ok, err := videos.HasShare(ctx, video, viewer)
	require.NoError(t, err)
	assert.False(t, ok)

	err = NewPgReleaseTx(testPool).RunInTx(ctx, func(st ReleaseStore) error {
		_, err := st.GrantShares(ctx, video, []string{c.ID}, model.ShareReasonRelease, time.Now())
		return err
	})
	require.NoError(t, err)

	ok, err = videos.HasShare(ctx, video, viewer)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := videos.ListSharedWith(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, video, list[0].ID)

	// retiring the contact row revokes visibility
	require.NoError(t, contacts.Remove(ctx, c.ID, time.Now()))
	ok, err = videos.HasShare(ctx, video, viewer)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPgAuditRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	audit := NewPgAuditRepository(testPool)
	owner := seedUser(t, uniqueEmail(t, "owner"))

	require.NoError(t, audit.Record(ctx, &model.ConfirmationEvent{
		TargetOwnerID: owner,
		CallerID:      "not-a-uuid",
		Outcome:       model.OutcomeRejectedUnauthorized,
	}))
	require.NoError(t, audit.Record(ctx, &model.ConfirmationEvent{
		TargetOwnerID:      owner,
		CallerID:           owner,
		Outcome:            model.OutcomeRejectedInvalid,
		VerificationMethod: "other",
		Detail:             "notes_too_long",
	}))

	events, err := audit.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.CreatedAt.IsZero())
	}
}

func TestPgNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPgNotificationRepository(testPool)
	user := seedUser(t, uniqueEmail(t, "user"))

	require.NoError(t, repo.Create(ctx, &model.Notification{
		UserID: user, Kind: model.NotificationMediaReleased, Title: "t", Body: "b",
	}))
	list, err := repo.ListByUser(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.NotificationMediaReleased, list[0].Kind)
}

func TestMigrator_Version(t *testing.T) {
	dsn := testPool.Config().ConnString()
	mg, err := NewMigrator(slog.New(slog.NewTextHandler(io.Discard, nil)), dsn, migrations.FS)
	require.NoError(t, err)
	defer func() { _ = mg.Close() }()

	ver, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), ver)
	assert.False(t, dirty)
}

func TestPgUserRepository_FindByEmailNormalizes(t *testing.T) {
	ctx := context.Background()
	repo := NewPgUserRepository(testPool)
	email := uniqueEmail(t, "case")
	id := seedUser(t, email)

	u, err := repo.FindByEmail(ctx, "  "+strings.ToUpper(email)+" ")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = repo.FindByEmail(ctx, "nobody-"+email)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, repo.Ping(ctx))
}
