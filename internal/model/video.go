package model

import "time"

// Visibility decides who may see a video while its owner is alive and after.
type Visibility string

const (
	// VisibilityPrivate videos are never released.
	VisibilityPrivate Visibility = "private"
	// VisibilityTrustedRelease videos stay private until the owner's death is
	// confirmed, then become visible to every trusted contact.
	VisibilityTrustedRelease Visibility = "trusted_release"
	// VisibilityContacts videos are shared immediately.
	VisibilityContacts Visibility = "contacts"
)

// Video is the metadata of a recorded message. The bytes live in external
// object storage under StorageKey.
type Video struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Title      string     `json:"title"`
	StorageKey string     `json:"-"`
	Visibility Visibility `json:"visibility"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// VideoShare grants one contact access to one video.
type VideoShare struct {
	VideoID   string    `json:"video_id"`
	ContactID string    `json:"contact_id"`
	Reason    string    `json:"reason"`
	GrantedAt time.Time `json:"granted_at"`
}

// ShareReasonRelease marks shares created by the release cascade.
const ShareReasonRelease = "release"
