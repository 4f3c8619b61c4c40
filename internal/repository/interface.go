package repository

import (
	"context"
	"time"

	"github.com/afterword/backend/internal/model"
)

// DB は DB 接続の生存確認を行うインターフェース
type DB interface {
	Ping(ctx context.Context) error
}

// UserRepository reads the account directory.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail matches case and whitespace insensitively.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// ContactRepository persists owner-to-contact relationships. Every method
// keeps at most one primary row per owner and contact type.
type ContactRepository interface {
	// Create inserts c. Returns ErrConflict when the owner already has a live
	// row for the same normalized e-mail.
	Create(ctx context.Context, c *model.Contact) error
	GetByID(ctx context.Context, id string) (*model.Contact, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Contact, error)
	// Update writes the mutable fields (descriptive, type, role, primary).
	Update(ctx context.Context, c *model.Contact) error
	// Remove retires the row without deleting it.
	Remove(ctx context.Context, id string, at time.Time) error
	// ListUnregistered returns live, non-registered rows with id > afterID,
	// ordered by id.
	ListUnregistered(ctx context.Context, afterID string, limit int) ([]*model.Contact, error)
	// MarkRegistered moves a row to registered. It reports false when the row
	// was already registered or removed; the transition never regresses.
	MarkRegistered(ctx context.Context, id, targetUserID string, at time.Time) (bool, error)
	// ListTrustedByEmail returns live trusted rows whose e-mail equals email,
	// joined with the owning account.
	ListTrustedByEmail(ctx context.Context, email string) ([]*model.TrustedRelationship, error)
	// FindTrustedLink returns the live, registered trusted row of ownerID that
	// points at targetUserID.
	FindTrustedLink(ctx context.Context, ownerID, targetUserID string) (*model.Contact, error)
}

// VideoRepository reads video metadata and release shares.
type VideoRepository interface {
	GetByID(ctx context.Context, id string) (*model.Video, error)
	// ListSharedWith returns videos shared to any live contact row linked to
	// viewerID.
	ListSharedWith(ctx context.Context, viewerID string) ([]*model.Video, error)
	// HasShare reports whether videoID is shared to a live contact row linked
	// to viewerID.
	HasShare(ctx context.Context, videoID, viewerID string) (bool, error)
}

// AuditRepository stores deceased-confirmation attempts.
type AuditRepository interface {
	Record(ctx context.Context, ev *model.ConfirmationEvent) error
	ListByOwner(ctx context.Context, ownerID string) ([]*model.ConfirmationEvent, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}

// ReleaseStore is the set of writes the release cascade performs. It is only
// reachable inside ReleaseTx.RunInTx so the owner flip and the grants commit
// together.
type ReleaseStore interface {
	// MarkDeceased flips the owner to deceased. It reports false when the owner
	// is missing or already deceased.
	MarkDeceased(ctx context.Context, ownerID, confirmedBy string, at time.Time) (bool, error)
	ListTrustedReleaseVideos(ctx context.Context, ownerID string) ([]*model.Video, error)
	ListContactsByType(ctx context.Context, ownerID string, t model.ContactType) ([]*model.Contact, error)
	// GrantShares inserts missing shares and returns how many were new.
	GrantShares(ctx context.Context, videoID string, contactIDs []string, reason string, at time.Time) (int, error)
	MarkVideoReleased(ctx context.Context, videoID string, at time.Time) error
	RecordConfirmation(ctx context.Context, ev *model.ConfirmationEvent) error
}

// ReleaseTx runs fn atomically. If fn returns an error nothing it wrote is
// visible to other readers.
type ReleaseTx interface {
	RunInTx(ctx context.Context, fn func(store ReleaseStore) error) error
}
