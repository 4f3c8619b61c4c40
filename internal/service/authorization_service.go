package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
)

// Action is a legacy action checked by the AuthorizationGate.
type Action string

const (
	ActionConfirmDeceased   Action = "confirm_deceased"
	ActionViewReleasedMedia Action = "view_released_media"
)

// ReleasePolicy decides which trusted roles may start a deceased
// confirmation. Every trusted role may view released media.
type ReleasePolicy struct {
	InitiatorRoles []model.Role
}

// DefaultReleasePolicy lets every trusted role initiate.
func DefaultReleasePolicy() ReleasePolicy {
	return ReleasePolicy{InitiatorRoles: append([]model.Role(nil), model.AllRoles...)}
}

// AuthorizationGate answers whether a caller may act on a target owner. It
// reads the store on every call; results are never cached.
type AuthorizationGate interface {
	CanPerform(ctx context.Context, action Action, callerID, targetOwnerID string) (bool, error)
}

type authorizationGate struct {
	contacts repository.ContactRepository
	users    repository.UserRepository
	policy   ReleasePolicy
}

// NewAuthorizationGate creates an AuthorizationGate.
func NewAuthorizationGate(contacts repository.ContactRepository, users repository.UserRepository, policy ReleasePolicy) AuthorizationGate {
	return &authorizationGate{contacts: contacts, users: users, policy: policy}
}

func (g *authorizationGate) CanPerform(ctx context.Context, action Action, callerID, targetOwnerID string) (bool, error) {
	if callerID == "" || !validID(targetOwnerID) || callerID == targetOwnerID {
		return false, nil
	}
	link, err := g.contacts.FindTrustedLink(ctx, targetOwnerID, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find trusted link: %w", err)
	}

	switch action {
	case ActionConfirmDeceased:
		return link.Role != nil && slices.Contains(g.policy.InitiatorRoles, *link.Role), nil
	case ActionViewReleasedMedia:
		owner, err := g.users.FindByID(ctx, targetOwnerID)
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("load owner: %w", err)
		}
		return owner.IsDeceased(), nil
	default:
		return false, nil
	}
}

// AdminAuthorizer checks whether a caller holds the admin role.
type AdminAuthorizer interface {
	IsAdmin(ctx context.Context, callerID string) (bool, error)
}

type adminAuthorizer struct {
	users repository.UserRepository
}

// NewAdminAuthorizer creates an AdminAuthorizer backed by users.is_admin.
func NewAdminAuthorizer(users repository.UserRepository) AdminAuthorizer {
	return &adminAuthorizer{users: users}
}

func (a *adminAuthorizer) IsAdmin(ctx context.Context, callerID string) (bool, error) {
	if !validID(callerID) {
		return false, nil
	}
	u, err := a.users.FindByID(ctx, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}
