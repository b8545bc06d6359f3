// Package notifier delivers outbound messages: password reset tokens and
// booking activity notices.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// ActivityKind names a booking activity worth announcing.
type ActivityKind string

const (
	ActivityBooked    ActivityKind = "booked"
	ActivityCancelled ActivityKind = "cancelled"
	ActivitySoldOut   ActivityKind = "sold_out"
)

// Activity is a committed change to an event's bookings.
type Activity struct {
	Kind     ActivityKind
	Username string
	Event    model.Event
}

// Notifier announces booking activity. Implementations are called after the
// store transaction has committed.
type Notifier interface {
	NotifyActivity(ctx context.Context, a Activity) error
}

// LogNotifier writes reset tokens and activity to the structured log. It
// stands in for an email transport.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendPasswordReset logs the reset token for the user.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, user model.User, token string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "password reset token issued",
		"user_id", user.ID,
		"email", user.Email,
		"token", token,
		"expires_at", expiresAt.UTC().Format(time.RFC3339),
	)
	return nil
}

// NotifyActivity logs the activity with the event's seat counts.
func (n *LogNotifier) NotifyActivity(ctx context.Context, a Activity) error {
	n.logger.InfoContext(ctx, "booking activity",
		"kind", a.Kind,
		"username", a.Username,
		"event_id", a.Event.ID,
		"event", a.Event.Title,
		"booked", a.Event.Booked(),
		"seats_left", a.Event.SeatsLeft,
	)
	return nil
}

// Multi fans an activity out to several notifiers and returns the first
// error after trying all of them.
type Multi []Notifier

// NotifyActivity implements Notifier.
func (m Multi) NotifyActivity(ctx context.Context, a Activity) error {
	var first error
	for _, n := range m {
		if err := n.NotifyActivity(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
