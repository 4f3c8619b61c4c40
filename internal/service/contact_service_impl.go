package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/afterword/backend/internal/identity"
	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/google/uuid"
)

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	contacts repository.ContactRepository
	users    repository.UserRepository
	resolver identity.Resolver
	notifier Notifier
	now      func() time.Time
}

// NewContactService creates a ContactService. notifier may be nil.
func NewContactService(contacts repository.ContactRepository, users repository.UserRepository,
	resolver identity.Resolver, notifier Notifier) ContactService {
	return &contactServiceImpl{
		contacts: contacts,
		users:    users,
		resolver: resolver,
		notifier: notifierOrNoop(notifier),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// validID rejects identifiers that cannot name a stored row, so malformed
// path values behave exactly like unknown ones.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *contactServiceImpl) Add(ctx context.Context, ownerID string, in model.ContactInput) (*model.Contact, error) {
	owner, err := s.users.FindByID(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}

	if err := model.ValidateEmail(in.Email); err != nil {
		return nil, invalid(CodeInvalidEmail)
	}
	c := &model.Contact{
		OwnerID:           ownerID,
		Email:             in.Email,
		FullName:          in.FullName,
		Phone:             in.Phone,
		RelationshipLabel: in.RelationshipLabel,
		Type:              in.Type,
		Role:              in.Role,
		IsPrimary:         in.IsPrimary,
		InvitationStatus:  model.StatusPendingConfirmation,
	}
	c.Normalize()
	if err := checkContact(c); err != nil {
		return nil, err
	}
	if model.SameEmail(c.Email, owner.Email) {
		return nil, invalid(CodeCannotAddSelf)
	}
	if in.Invite {
		c.InvitationStatus = model.StatusInvited
	}

	log := logging.FromContext(ctx)
	res, err := s.resolver.Resolve(ctx, c.Email)
	if err != nil {
		// Left unresolved; the reconciliation sweep picks it up later.
		log.Warn("identity resolve failed on add", slog.String("owner_id", ownerID), slog.Any("error", err))
	}
	if res.Exists {
		now := s.now()
		target := res.AccountID
		c.InvitationStatus = model.StatusRegistered
		c.TargetUserID = &target
		c.ConfirmedAt = &now
	}

	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, err
	}
	log.Info("contact added",
		slog.String("owner_id", ownerID),
		slog.String("contact_id", c.ID),
		slog.String("contact_type", string(c.Type)),
		slog.String("invitation_status", string(c.InvitationStatus)))

	if in.Invite && !c.InvitationStatus.IsRegistered() {
		s.notifier.ContactInvited(context.WithoutCancel(ctx), owner, c)
	}
	return c, nil
}

// checkContact maps model validation failures onto validation codes.
func checkContact(c *model.Contact) error {
	if c.FullName == "" {
		return invalid(CodeFullNameRequired)
	}
	t, err := model.ParseContactType(string(c.Type))
	if err != nil {
		return invalid(CodeInvalidContactType)
	}
	c.Type = t
	if c.Role != nil {
		r, err := model.ParseRole(string(*c.Role))
		if err != nil {
			return invalid(CodeInvalidRole)
		}
		c.Role = &r
	}
	if err := c.Validate(); err != nil {
		if errors.Is(err, model.ErrTrustedWithoutRole) {
			return invalid(CodeRoleRequired)
		}
		return invalid(CodeInvalidEmail)
	}
	return nil
}

func (s *contactServiceImpl) List(ctx context.Context, ownerID string) ([]*model.Contact, error) {
	return s.contacts.ListByOwner(ctx, ownerID)
}

// owned loads a contact of ownerID. Rows owned by someone else look missing.
func (s *contactServiceImpl) owned(ctx context.Context, ownerID, contactID string) (*model.Contact, error) {
	if !validID(contactID) {
		return nil, repository.ErrNotFound
	}
	c, err := s.contacts.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *contactServiceImpl) Update(ctx context.Context, ownerID, contactID string, patch model.ContactPatch) (*model.Contact, error) {
	c, err := s.owned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	patch.Apply(c)
	c.Normalize()
	if err := checkContact(c); err != nil {
		return nil, err
	}
	if err := s.contacts.Update(ctx, c); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("contact updated",
		slog.String("owner_id", ownerID), slog.String("contact_id", contactID))
	return c, nil
}

func (s *contactServiceImpl) Remove(ctx context.Context, ownerID, contactID string) error {
	if _, err := s.owned(ctx, ownerID, contactID); err != nil {
		return err
	}
	if err := s.contacts.Remove(ctx, contactID, s.now()); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("contact removed",
		slog.String("owner_id", ownerID), slog.String("contact_id", contactID))
	return nil
}

func (s *contactServiceImpl) TrustedBy(ctx context.Context, callerID, claimedEmail string) ([]*model.TrustedRelationship, error) {
	caller, err := s.users.FindByID(ctx, callerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	if strings.TrimSpace(claimedEmail) != "" && !model.SameEmail(claimedEmail, caller.Email) {
		return nil, ErrForbidden
	}
	rels, err := s.contacts.ListTrustedByEmail(ctx, model.NormalizeEmail(caller.Email))
	if err != nil {
		return nil, err
	}
	return rels, nil
}
