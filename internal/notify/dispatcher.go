// Package notify delivers e-mail, in-app notifications and broker events
// after a state change has committed. Delivery never reports back to the
// caller: failures are retried a few times and then logged.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/afterword/backend/internal/config"
	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/metrics"
	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

// QueueReleaseCompleted is the broker queue for release events.
const QueueReleaseCompleted = "release.completed"

const (
	maxAttempts     = 3
	defaultParallel = 4
)

// Config wires a Dispatcher. Mailer and Notifications are required;
// Publisher and Metrics may be nil.
type Config struct {
	Mailer        Mailer
	Notifications repository.NotificationRepository
	Publisher     Publisher
	Metrics       *metrics.Metrics
	Regular       config.RegularNotice
	FrontendURL   string
	// Parallel bounds concurrent deliveries per event.
	Parallel int
	// Backoff is the delay before the second attempt; it doubles after.
	Backoff time.Duration
}

// Dispatcher fans events out to every channel in the background.
type Dispatcher struct {
	cfg Config
	wg  sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Parallel <= 0 {
		cfg.Parallel = defaultParallel
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.Regular == "" {
		cfg.Regular = config.RegularNoticeNotice
	}
	return &Dispatcher{cfg: cfg}
}

// Wait blocks until every dispatched event has finished delivering.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type job struct {
	channel string
	target  string
	run     func(ctx context.Context) error
}

// retry runs fn up to maxAttempts times with exponential backoff.
func (d *Dispatcher) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	wait := d.cfg.Backoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

// dispatch runs jobs in the background with bounded parallelism.
func (d *Dispatcher) dispatch(ctx context.Context, event string, jobs []job) {
	if len(jobs) == 0 {
		return
	}
	log := logging.FromContext(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		var g errgroup.Group
		g.SetLimit(d.cfg.Parallel)
		for _, j := range jobs {
			g.Go(func() error {
				err := d.retry(ctx, j.run)
				d.cfg.Metrics.IncrementDelivery(j.channel, err == nil)
				if err != nil {
					log.Error("notification delivery failed",
						slog.String("event", event),
						slog.String("channel", j.channel),
						slog.String("target", j.target),
						slog.Any("error", err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (d *Dispatcher) emailJob(e Email) job {
	return job{channel: "email", target: e.To, run: func(ctx context.Context) error {
		return d.cfg.Mailer.Send(ctx, e)
	}}
}

func (d *Dispatcher) inAppJob(n model.Notification) job {
	return job{channel: "in_app", target: n.UserID, run: func(ctx context.Context) error {
		cp := n
		return d.cfg.Notifications.Create(ctx, &cp)
	}}
}

// ContactInvited e-mails an invitation to a newly added contact.
func (d *Dispatcher) ContactInvited(ctx context.Context, owner *model.User, c *model.Contact) {
	subject := fmt.Sprintf("%s added you as a contact", owner.DisplayName())
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", c.FullName)
	if c.IsTrusted() {
		fmt.Fprintf(&b, "%s has named you a trusted contact.\n", owner.DisplayName())
	} else {
		fmt.Fprintf(&b, "%s wants to share video messages with you.\n", owner.DisplayName())
	}
	fmt.Fprintf(&b, "Create an account with this e-mail address to accept: %s\n", d.cfg.FrontendURL)

	d.dispatch(ctx, "contact.invited", []job{d.emailJob(Email{To: c.Email, Subject: subject, Body: b.String()})})
}

// ReleaseCompleted tells trusted contacts that media is available and,
// depending on policy, gives regular contacts a notice without media access.
func (d *Dispatcher) ReleaseCompleted(ctx context.Context, ev *model.ReleaseEvent) {
	name := ev.OwnerDisplayName
	var jobs []job

	for _, c := range ev.Trusted {
		jobs = append(jobs, d.emailJob(Email{
			To:      c.Email,
			Subject: fmt.Sprintf("Messages from %s are now available", name),
			Body: fmt.Sprintf("Hello %s,\n\n%s's passing has been confirmed. %d video message(s) left for you can now be viewed at %s\n",
				c.FullName, name, ev.VideoCount, d.cfg.FrontendURL),
		}))
		if c.TargetUserID != nil {
			jobs = append(jobs, d.inAppJob(model.Notification{
				UserID: *c.TargetUserID,
				Kind:   model.NotificationMediaReleased,
				Title:  fmt.Sprintf("Messages from %s", name),
				Body:   fmt.Sprintf("%d video message(s) are now available.", ev.VideoCount),
			}))
		}
	}

	if d.cfg.Regular == config.RegularNoticeNotice {
		for _, c := range ev.Regular {
			jobs = append(jobs, d.emailJob(Email{
				To:      c.Email,
				Subject: fmt.Sprintf("News about %s", name),
				Body:    fmt.Sprintf("Hello %s,\n\nWe are sorry to let you know that %s has passed away.\n", c.FullName, name),
			}))
			if c.TargetUserID != nil {
				jobs = append(jobs, d.inAppJob(model.Notification{
					UserID: *c.TargetUserID,
					Kind:   model.NotificationOwnerPassed,
					Title:  fmt.Sprintf("%s has passed away", name),
					Body:   "A trusted contact confirmed the news.",
				}))
			}
		}
	}

	if d.cfg.Publisher != nil {
		jobs = append(jobs, job{channel: "amqp", target: QueueReleaseCompleted, run: func(ctx context.Context) error {
			return d.cfg.Publisher.Publish(ctx, QueueReleaseCompleted, ev)
		}})
	}

	d.dispatch(ctx, QueueReleaseCompleted, jobs)
}
