package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUserRepo struct {
	findByIDFunc    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFunc func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func TestResolve_NormalizesBeforeLookup(t *testing.T) {
	var seen string
	users := &mockUserRepo{findByEmailFunc: func(_ context.Context, email string) (*model.User, error) {
		seen = email
		return &model.User{ID: "u1", Email: email}, nil
	}}
	r := NewDirectoryResolver(users, nil)

	res, err := r.Resolve(context.Background(), "  Ann@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", seen)
	assert.Equal(t, Resolution{Exists: true, AccountID: "u1"}, res)
}

func TestResolve_MissingIsNotAnError(t *testing.T) {
	r := NewDirectoryResolver(&mockUserRepo{}, nil)

	res, err := r.Resolve(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.Empty(t, res.AccountID)
}

func TestResolve_DirectoryFailure(t *testing.T) {
	boom := errors.New("db down")
	users := &mockUserRepo{findByEmailFunc: func(context.Context, string) (*model.User, error) {
		return nil, boom
	}}
	r := NewDirectoryResolver(users, nil)

	res, err := r.Resolve(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Exists)
}

func TestResolve_EmptyAddress(t *testing.T) {
	called := false
	users := &mockUserRepo{findByEmailFunc: func(context.Context, string) (*model.User, error) {
		called = true
		return nil, nil
	}}
	res, err := NewDirectoryResolver(users, nil).Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.False(t, called)
}

func TestResolve_CollapsesConcurrentLookups(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	users := &mockUserRepo{findByEmailFunc: func(context.Context, string) (*model.User, error) {
		calls.Add(1)
		<-release
		return &model.User{ID: "u1"}, nil
	}}
	r := NewDirectoryResolver(users, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), "a@example.com")
			assert.NoError(t, err)
			assert.True(t, res.Exists)
		}()
	}
	// let every goroutine reach the shared call before releasing it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func newTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client, ttl)
}

func TestResolve_CachesPositiveResultsOnly(t *testing.T) {
	_, cache := newTestCache(t, time.Minute)
	var calls atomic.Int32
	registered := map[string]string{"ann@example.com": "u1"}
	users := &mockUserRepo{findByEmailFunc: func(_ context.Context, email string) (*model.User, error) {
		calls.Add(1)
		if id, ok := registered[email]; ok {
			return &model.User{ID: id}, nil
		}
		return nil, repository.ErrNotFound
	}}
	r := NewDirectoryResolver(users, cache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := r.Resolve(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", res.AccountID)
	}
	assert.Equal(t, int32(1), calls.Load())

	for i := 0; i < 2; i++ {
		res, err := r.Resolve(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.False(t, res.Exists)
	}
	assert.Equal(t, int32(3), calls.Load())

	// bob registers later and must be seen immediately
	registered["bob@example.com"] = "u2"
	res, err := r.Resolve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u2", res.AccountID)
}

func TestRedisCache_Expiry(t *testing.T) {
	mr, cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "a@example.com", "u1")
	id, ok := cache.Get(ctx, "a@example.com")
	require.True(t, ok)
	assert.Equal(t, "u1", id)

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Get(ctx, "a@example.com")
	assert.False(t, ok)
}

func TestRedisCache_FailureIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client, time.Minute)

	_, ok := cache.Get(context.Background(), "a@example.com")
	assert.False(t, ok)
	cache.Set(context.Background(), "a@example.com", "u1")
}
