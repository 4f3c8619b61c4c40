// Package identity answers whether an e-mail address belongs to a registered
// account. It never writes to the account directory.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"golang.org/x/sync/singleflight"
)

// Resolution is the answer for one address. AccountID is set iff Exists.
type Resolution struct {
	Exists    bool
	AccountID string
}

// Resolver maps an e-mail address to an account.
type Resolver interface {
	Resolve(ctx context.Context, email string) (Resolution, error)
}

// Cache stores positive resolutions. Implementations must treat failures as
// misses.
type Cache interface {
	Get(ctx context.Context, email string) (accountID string, ok bool)
	Set(ctx context.Context, email, accountID string)
}

// DirectoryResolver looks addresses up in the account directory.
type DirectoryResolver struct {
	users repository.UserRepository
	cache Cache
	group singleflight.Group
}

var _ Resolver = (*DirectoryResolver)(nil)

// NewDirectoryResolver creates a resolver. cache may be nil.
func NewDirectoryResolver(users repository.UserRepository, cache Cache) *DirectoryResolver {
	return &DirectoryResolver{users: users, cache: cache}
}

// Resolve normalizes email before the lookup. A missing account is not an
// error; any other directory failure is returned with Exists=false.
func (r *DirectoryResolver) Resolve(ctx context.Context, email string) (Resolution, error) {
	key := model.NormalizeEmail(email)
	if key == "" {
		return Resolution{}, nil
	}
	if r.cache != nil {
		if id, ok := r.cache.Get(ctx, key); ok {
			return Resolution{Exists: true, AccountID: id}, nil
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		u, err := r.users.FindByEmail(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			return Resolution{}, nil
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve %s: %w", key, err)
		}
		if r.cache != nil {
			r.cache.Set(ctx, key, u.ID)
		}
		return Resolution{Exists: true, AccountID: u.ID}, nil
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}
