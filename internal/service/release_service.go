package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/metrics"
	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
)

const maxNotesLength = 2000

// ConfirmRequest is one deceased-confirmation submission.
type ConfirmRequest struct {
	CallerID           string
	TargetOwnerID      string
	VerificationMethod string
	Notes              string
	ConfirmationText   string
}

// ConfirmResult is returned for both the first confirmation and every later
// duplicate; AlreadyConfirmed distinguishes them.
type ConfirmResult struct {
	Success          bool `json:"success"`
	AlreadyConfirmed bool `json:"already_confirmed"`
	Grants           int  `json:"grants"`
}

// ConfirmationPrompt is the text a caller must retype.
type ConfirmationPrompt struct {
	OwnerID          string `json:"owner_id"`
	OwnerDisplayName string `json:"owner_display_name"`
	Sentence         string `json:"sentence"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
}

// ReleaseService runs the deceased-confirmation protocol.
type ReleaseService interface {
	// ConfirmDeceased marks the target owner deceased and releases their
	// trusted-release videos to every trusted contact, at most once. Every
	// call is written to the audit trail.
	ConfirmDeceased(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error)
	// Prompt returns the confirmation sentence for a target the caller may
	// confirm.
	Prompt(ctx context.Context, callerID, targetOwnerID string) (*ConfirmationPrompt, error)
	// History lists the audit trail for a target owner.
	History(ctx context.Context, targetOwnerID string) ([]*model.ConfirmationEvent, error)
}

type releaseServiceImpl struct {
	gate     AuthorizationGate
	users    repository.UserRepository
	audit    repository.AuditRepository
	tx       repository.ReleaseTx
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewReleaseService creates a ReleaseService. notifier and m may be nil.
func NewReleaseService(gate AuthorizationGate, users repository.UserRepository, audit repository.AuditRepository,
	tx repository.ReleaseTx, notifier Notifier, m *metrics.Metrics) ReleaseService {
	return &releaseServiceImpl{
		gate:     gate,
		users:    users,
		audit:    audit,
		tx:       tx,
		notifier: notifierOrNoop(notifier),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// errLostRace aborts the cascade when another caller flipped the owner first.
var errLostRace = errors.New("owner already deceased")

func (s *releaseServiceImpl) record(ctx context.Context, req ConfirmRequest, outcome model.ConfirmationOutcome, detail string) {
	ev := &model.ConfirmationEvent{
		TargetOwnerID:      req.TargetOwnerID,
		CallerID:           req.CallerID,
		Outcome:            outcome,
		VerificationMethod: req.VerificationMethod,
		Notes:              req.Notes,
		Detail:             detail,
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), ev); err != nil {
		logging.FromContext(ctx).Error("audit write failed",
			slog.String("outcome", string(outcome)),
			slog.String("target_owner_id", req.TargetOwnerID),
			slog.Any("error", err))
	}
	s.metrics.IncrementConfirmation(string(outcome))
}

func (s *releaseServiceImpl) reject(ctx context.Context, req ConfirmRequest, code string) error {
	s.record(ctx, req, model.OutcomeRejectedInvalid, code)
	return invalid(code)
}

func (s *releaseServiceImpl) ConfirmDeceased(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	log := logging.FromContext(ctx).With(
		slog.String("caller_id", req.CallerID),
		slog.String("target_owner_id", req.TargetOwnerID))

	req.TargetOwnerID = strings.TrimSpace(req.TargetOwnerID)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.TargetOwnerID == "" {
		return nil, s.reject(ctx, req, CodeTargetRequired)
	}
	method, err := model.ParseVerificationMethod(req.VerificationMethod)
	if err != nil {
		return nil, s.reject(ctx, req, CodeInvalidMethod)
	}
	req.VerificationMethod = string(method)
	if utf8.RuneCountInString(req.Notes) > maxNotesLength {
		return nil, s.reject(ctx, req, CodeNotesTooLong)
	}

	ok, err := s.gate.CanPerform(ctx, ActionConfirmDeceased, req.CallerID, req.TargetOwnerID)
	if err != nil {
		s.record(ctx, req, model.OutcomeFailed, "authorization check failed")
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !ok {
		s.record(ctx, req, model.OutcomeRejectedUnauthorized, "")
		log.Warn("deceased confirmation denied")
		return nil, ErrForbidden
	}

	owner, err := s.users.FindByID(ctx, req.TargetOwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		s.record(ctx, req, model.OutcomeRejectedUnauthorized, "")
		return nil, ErrForbidden
	}
	if err != nil {
		s.record(ctx, req, model.OutcomeFailed, "load owner failed")
		return nil, fmt.Errorf("load owner: %w", err)
	}

	if strings.TrimSpace(req.ConfirmationText) != model.ConfirmationSentence(owner.DisplayName()) {
		return nil, s.reject(ctx, req, CodeConfirmationMismatch)
	}

	if owner.IsDeceased() {
		s.record(ctx, req, model.OutcomeAlreadyConfirmed, "")
		log.Info("deceased confirmation duplicate")
		return &ConfirmResult{Success: true, AlreadyConfirmed: true}, nil
	}

	ev, err := s.cascade(ctx, req, owner)
	if errors.Is(err, errLostRace) {
		s.record(ctx, req, model.OutcomeAlreadyConfirmed, "concurrent confirmation")
		log.Info("deceased confirmation lost race")
		return &ConfirmResult{Success: true, AlreadyConfirmed: true}, nil
	}
	if err != nil {
		s.record(ctx, req, model.OutcomeFailed, err.Error())
		log.Error("release cascade failed", slog.Any("error", err))
		return nil, fmt.Errorf("release cascade: %w", err)
	}

	s.metrics.IncrementConfirmation(string(model.OutcomeConfirmed))
	s.metrics.AddMediaGrants(ev.Grants)
	log.Info("owner confirmed deceased",
		slog.Int("videos", ev.VideoCount),
		slog.Int("grants", ev.Grants),
		slog.String("verification_method", req.VerificationMethod))

	s.notifier.ReleaseCompleted(context.WithoutCancel(ctx), ev)
	return &ConfirmResult{Success: true, Grants: ev.Grants}, nil
}

// cascade flips the owner and grants every trusted contact every
// trusted-release video in one transaction, together with the confirmed
// audit row.
func (s *releaseServiceImpl) cascade(ctx context.Context, req ConfirmRequest, owner *model.User) (*model.ReleaseEvent, error) {
	at := s.now()
	ev := &model.ReleaseEvent{
		OwnerID:          owner.ID,
		OwnerDisplayName: owner.DisplayName(),
		ConfirmedBy:      req.CallerID,
		ConfirmedAt:      at,
	}

	err := s.tx.RunInTx(ctx, func(store repository.ReleaseStore) error {
		flipped, err := store.MarkDeceased(ctx, owner.ID, req.CallerID, at)
		if err != nil {
			return fmt.Errorf("mark deceased: %w", err)
		}
		if !flipped {
			return errLostRace
		}

		videos, err := store.ListTrustedReleaseVideos(ctx, owner.ID)
		if err != nil {
			return fmt.Errorf("list videos: %w", err)
		}
		trusted, err := store.ListContactsByType(ctx, owner.ID, model.ContactTypeTrusted)
		if err != nil {
			return fmt.Errorf("list trusted contacts: %w", err)
		}
		regular, err := store.ListContactsByType(ctx, owner.ID, model.ContactTypeRegular)
		if err != nil {
			return fmt.Errorf("list regular contacts: %w", err)
		}

		ids := make([]string, len(trusted))
		for i, c := range trusted {
			ids[i] = c.ID
		}
		grants := 0
		for _, v := range videos {
			n, err := store.GrantShares(ctx, v.ID, ids, model.ShareReasonRelease, at)
			if err != nil {
				return fmt.Errorf("grant video %s: %w", v.ID, err)
			}
			grants += n
			if err := store.MarkVideoReleased(ctx, v.ID, at); err != nil {
				return fmt.Errorf("mark video %s released: %w", v.ID, err)
			}
		}

		if err := store.RecordConfirmation(ctx, &model.ConfirmationEvent{
			TargetOwnerID:      owner.ID,
			CallerID:           req.CallerID,
			Outcome:            model.OutcomeConfirmed,
			VerificationMethod: req.VerificationMethod,
			Notes:              req.Notes,
			Grants:             grants,
		}); err != nil {
			return fmt.Errorf("record confirmation: %w", err)
		}

		ev.Videos = videos
		ev.VideoCount = len(videos)
		ev.Grants = grants
		ev.Trusted = trusted
		ev.Regular = regular
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *releaseServiceImpl) Prompt(ctx context.Context, callerID, targetOwnerID string) (*ConfirmationPrompt, error) {
	ok, err := s.gate.CanPerform(ctx, ActionConfirmDeceased, callerID, targetOwnerID)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}
	owner, err := s.users.FindByID(ctx, targetOwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}
	return &ConfirmationPrompt{
		OwnerID:          owner.ID,
		OwnerDisplayName: owner.DisplayName(),
		Sentence:         model.ConfirmationSentence(owner.DisplayName()),
		AlreadyConfirmed: owner.IsDeceased(),
	}, nil
}

func (s *releaseServiceImpl) History(ctx context.Context, targetOwnerID string) ([]*model.ConfirmationEvent, error) {
	return s.audit.ListByOwner(ctx, targetOwnerID)
}
