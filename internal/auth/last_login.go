package auth

import (
	"context"
	"log/slog"

	"github.com/schooladmin/school-admin/internal/core/events"
)

type LoginStamper interface {
	StampLastLogin(ctx context.Context, id string) error
}

// SubscribeLastLogin records last_login for every authenticated request off
// the request path.
func SubscribeLastLogin(bus *events.EventBus, stamper LoginStamper, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	bus.Subscribe(events.EventTypeUserAuthenticated, func(ctx context.Context, event events.Event) error {
		e, ok := event.(*events.UserAuthenticatedEvent)
		if !ok {
			return nil
		}
		if err := stamper.StampLastLogin(ctx, e.UserID); err != nil {
			return err
		}
		logger.DebugContext(ctx, "last login stamped", "user_id", e.UserID)
		return nil
	})
}
