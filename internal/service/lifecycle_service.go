package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/afterword/backend/internal/identity"
	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/metrics"
	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

const (
	reconcilePageSize    = 200
	reconcileConcurrency = 8
)

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Scanned    int           `json:"scanned"`
	Registered int           `json:"registered"`
	Failures   int           `json:"failures"`
	Duration   time.Duration `json:"duration_ns"`
}

// LifecycleService moves contacts to registered once their e-mail belongs to
// an account. The transition is one-way and safe to repeat concurrently.
type LifecycleService interface {
	// Recheck re-resolves one contact of ownerID on demand.
	Recheck(ctx context.Context, ownerID, contactID string) (*model.Contact, error)
	// Reconcile re-resolves every live, non-registered contact.
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

type lifecycleServiceImpl struct {
	contacts repository.ContactRepository
	resolver identity.Resolver
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewLifecycleService creates a LifecycleService. m may be nil.
func NewLifecycleService(contacts repository.ContactRepository, resolver identity.Resolver, m *metrics.Metrics) LifecycleService {
	return &lifecycleServiceImpl{
		contacts: contacts,
		resolver: resolver,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// promote resolves c and applies the registered transition. It reports
// whether this call performed the transition.
func (s *lifecycleServiceImpl) promote(ctx context.Context, c *model.Contact) (bool, error) {
	res, err := s.resolver.Resolve(ctx, c.Email)
	if err != nil {
		return false, err
	}
	if !res.Exists {
		return false, nil
	}
	ok, err := s.contacts.MarkRegistered(ctx, c.ID, res.AccountID, s.now())
	if err != nil {
		return false, fmt.Errorf("mark registered %s: %w", c.ID, err)
	}
	return ok, nil
}

func (s *lifecycleServiceImpl) Recheck(ctx context.Context, ownerID, contactID string) (*model.Contact, error) {
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
	if c.InvitationStatus.IsRegistered() {
		return c, nil
	}

	log := logging.FromContext(ctx)
	changed, err := s.promote(ctx, c)
	if err != nil {
		log.Warn("recheck resolve failed", slog.String("contact_id", contactID), slog.Any("error", err))
		return c, nil
	}
	if changed {
		log.Info("contact registered", slog.String("contact_id", contactID), slog.String("trigger", "recheck"))
	}
	// A concurrent writer may have won the transition; re-read either way.
	return s.contacts.GetByID(ctx, contactID)
}

func (s *lifecycleServiceImpl) Reconcile(ctx context.Context) (ReconcileReport, error) {
	start := time.Now()
	log := logging.FromContext(ctx)
	var (
		mu     sync.Mutex
		report ReconcileReport
		after  string
	)

	for {
		page, err := s.contacts.ListUnregistered(ctx, after, reconcilePageSize)
		if err != nil {
			report.Duration = time.Since(start)
			return report, fmt.Errorf("list unregistered: %w", err)
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(reconcileConcurrency)
		for _, c := range page {
			g.Go(func() error {
				changed, err := s.promote(gctx, c)
				mu.Lock()
				defer mu.Unlock()
				report.Scanned++
				if err != nil {
					report.Failures++
					log.Warn("reconcile resolve failed", slog.String("contact_id", c.ID), slog.Any("error", err))
					return nil
				}
				if changed {
					report.Registered++
				}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}

		after = page[len(page)-1].ID
		if len(page) < reconcilePageSize {
			break
		}
	}

	report.Duration = time.Since(start)
	s.metrics.ObserveReconcile(report.Registered, report.Failures, report.Duration)
	log.Info("reconcile finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("registered", report.Registered),
		slog.Int("failures", report.Failures),
		slog.Duration("duration", report.Duration))
	return report, nil
}
