package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ContactType distinguishes contacts that receive immediate shares from those
// that also take part in the release protocol.
type ContactType string

const (
	ContactTypeRegular ContactType = "regular"
	ContactTypeTrusted ContactType = "trusted"
)

// ParseContactType converts a raw value into a ContactType.
func ParseContactType(s string) (ContactType, error) {
	switch ContactType(strings.ToLower(strings.TrimSpace(s))) {
	case ContactTypeRegular:
		return ContactTypeRegular, nil
	case ContactTypeTrusted:
		return ContactTypeTrusted, nil
	}
	return "", fmt.Errorf("invalid contact_type %q", s)
}

// Role governs which legacy actions a trusted contact may perform.
type Role string

const (
	RoleExecutor        Role = "executor"
	RoleLegacyMessenger Role = "legacy_messenger"
	RoleGuardian        Role = "guardian"
)

// AllRoles lists every trusted role.
var AllRoles = []Role{RoleExecutor, RoleLegacyMessenger, RoleGuardian}

// ParseRole converts a raw value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllRoles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", s)
}

// InvitationStatus tracks whether a contact's e-mail is tied to a real account.
type InvitationStatus string

const (
	StatusPendingConfirmation InvitationStatus = "pending_confirmation"
	StatusPending             InvitationStatus = "pending"
	StatusInvited             InvitationStatus = "invited"
	StatusRegistered          InvitationStatus = "registered"
)

// IsRegistered reports whether the status is terminal.
func (s InvitationStatus) IsRegistered() bool {
	return s == StatusRegistered
}

var (
	ErrTrustedWithoutRole = errors.New("trusted contact requires a role")
	ErrEmailRequired      = errors.New("email is required")
)

// Contact is a one-directional relationship: the owner knows or trusts the
// person behind Email. TargetUserID is a weak reference to that person's own
// account and never implies ownership of this row.
type Contact struct {
	ID                string           `json:"id"`
	OwnerID           string           `json:"owner_id"`
	Email             string           `json:"email"`
	FullName          string           `json:"full_name"`
	Phone             string           `json:"phone,omitempty"`
	RelationshipLabel string           `json:"relationship_label,omitempty"`
	Type              ContactType      `json:"contact_type"`
	Role              *Role            `json:"role,omitempty"`
	IsPrimary         bool             `json:"is_primary"`
	InvitationStatus  InvitationStatus `json:"invitation_status"`
	TargetUserID      *string          `json:"target_user_id,omitempty"`
	ConfirmedAt       *time.Time       `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	RemovedAt         *time.Time       `json:"-"`
}

// IsTrusted reports whether the contact takes part in the release protocol.
func (c *Contact) IsTrusted() bool {
	return c.Type == ContactTypeTrusted
}

// IsRemoved reports whether the owner retired the contact.
func (c *Contact) IsRemoved() bool {
	return c.RemovedAt != nil
}

// Normalize enforces the stored shape: normalized e-mail, canonical enum
// spellings and no role on regular contacts.
func (c *Contact) Normalize() {
	c.Email = NormalizeEmail(c.Email)
	c.FullName = strings.TrimSpace(c.FullName)
	c.Phone = strings.TrimSpace(c.Phone)
	c.RelationshipLabel = strings.TrimSpace(c.RelationshipLabel)
	if t, err := ParseContactType(string(c.Type)); err == nil {
		c.Type = t
	}
	if c.Role != nil {
		if r, err := ParseRole(string(*c.Role)); err == nil {
			c.Role = &r
		}
	}
	if c.Type == ContactTypeRegular {
		c.Role = nil
	}
}

// Validate rejects combinations the store must never hold.
func (c *Contact) Validate() error {
	if c.Email == "" {
		return ErrEmailRequired
	}
	switch c.Type {
	case ContactTypeRegular:
	case ContactTypeTrusted:
		if c.Role == nil {
			return ErrTrustedWithoutRole
		}
		if _, err := ParseRole(string(*c.Role)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid contact_type %q", c.Type)
	}
	return nil
}

// ContactInput carries the fields an owner supplies when adding a contact.
type ContactInput struct {
	Email             string
	FullName          string
	Phone             string
	RelationshipLabel string
	Type              ContactType
	Role              *Role
	IsPrimary         bool
	// Invite marks an explicit intent to send an external invitation.
	Invite bool
}

// ContactPatch carries optional edits. Email is immutable.
type ContactPatch struct {
	FullName          *string
	Phone             *string
	RelationshipLabel *string
	Type              *ContactType
	Role              *Role
	IsPrimary         *bool
}

// Apply copies the set fields onto c.
func (p ContactPatch) Apply(c *Contact) {
	if p.FullName != nil {
		c.FullName = *p.FullName
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.RelationshipLabel != nil {
		c.RelationshipLabel = *p.RelationshipLabel
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Role != nil {
		r := *p.Role
		c.Role = &r
	}
	if p.IsPrimary != nil {
		c.IsPrimary = *p.IsPrimary
	}
}

// TrustedRelationship is the reverse view of a trusted Contact row, seen by
// the contact rather than the owner.
type TrustedRelationship struct {
	ContactID        string           `json:"contact_id"`
	OwnerID          string           `json:"owner_id"`
	OwnerDisplayName string           `json:"owner_display_name"`
	OwnerEmail       string           `json:"owner_email"`
	Role             Role             `json:"role"`
	IsPrimary        bool             `json:"is_primary"`
	InvitationStatus InvitationStatus `json:"invitation_status"`
	OwnerDeceasedAt  *time.Time       `json:"owner_deceased_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}
