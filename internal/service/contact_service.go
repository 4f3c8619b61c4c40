package service

import (
	"context"

	"github.com/afterword/backend/internal/model"
)

// ContactService manages an owner's contacts and the reverse "trusted by"
// view. Every method is scoped to the authenticated caller.
type ContactService interface {
	// Add creates a contact for ownerID. The e-mail is resolved against the
	// account directory before the insert; a resolver failure leaves the
	// contact unresolved instead of failing the call. Returns
	// repository.ErrConflict when the normalized e-mail already exists.
	Add(ctx context.Context, ownerID string, in model.ContactInput) (*model.Contact, error)

	// List returns both regular and trusted contacts of ownerID.
	List(ctx context.Context, ownerID string) ([]*model.Contact, error)

	// Update applies an owner edit. The e-mail cannot change.
	Update(ctx context.Context, ownerID, contactID string, patch model.ContactPatch) (*model.Contact, error)

	// Remove retires a contact.
	Remove(ctx context.Context, ownerID, contactID string) error

	// TrustedBy lists relationships where the caller is someone's trusted
	// contact, keyed by the caller's own verified e-mail. claimedEmail is
	// optional; when set it must match the verified address.
	TrustedBy(ctx context.Context, callerID, claimedEmail string) ([]*model.TrustedRelationship, error)
}
