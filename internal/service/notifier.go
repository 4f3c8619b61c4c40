package service

import (
	"context"

	"github.com/afterword/backend/internal/model"
)

// Notifier delivers messages after a state change has committed. Calls must
// not block on delivery and never report failures back to the caller.
type Notifier interface {
	ContactInvited(ctx context.Context, owner *model.User, c *model.Contact)
	ReleaseCompleted(ctx context.Context, ev *model.ReleaseEvent)
}

type noopNotifier struct{}

func (noopNotifier) ContactInvited(context.Context, *model.User, *model.Contact) {}
func (noopNotifier) ReleaseCompleted(context.Context, *model.ReleaseEvent)       {}

func notifierOrNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
