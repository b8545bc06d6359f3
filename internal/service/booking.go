package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/notifier"
	"github.com/Shivanand-hulikatti/event-booking/internal/policy"
)

// BookingService orchestrates reservations against the catalog and ledger.
type BookingService struct {
	events   EventStore
	bookings BookingStore
	notifier notifier.Notifier
	retry    RetryPolicy
	logger   *slog.Logger
}

// NewBookingService constructs a BookingService with its dependencies.
func NewBookingService(
	events EventStore,
	bookings BookingStore,
	n notifier.Notifier,
	retry RetryPolicy,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		events:   events,
		bookings: bookings,
		notifier: n,
		retry:    retry.withDefaults(),
		logger:   logger,
	}
}

// Reserve books one seat of eventID for user. The checks run in order:
// unknown event, existing booking, no seats left. Nothing changes on failure.
func (s *BookingService) Reserve(ctx context.Context, user *model.User, eventID string) (*model.Booking, error) {
	if err := policy.RequireAuthenticated(user); err != nil {
		return nil, err
	}
	if !validID(eventID) {
		return nil, model.ErrNotFound
	}

	var booking *model.Booking
	err := s.retry.Do(ctx, func() error {
		var err error
		booking, err = s.bookings.Reserve(ctx, user.ID, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("seat reserved", "user_id", user.ID, "event_id", eventID, "booking_id", booking.ID)
	s.announce(ctx, notifier.ActivityBooked, user.Username, eventID)
	return booking, nil
}

// Cancel releases the caller's own booking for eventID.
func (s *BookingService) Cancel(ctx context.Context, user *model.User, eventID string) error {
	if err := policy.RequireAuthenticated(user); err != nil {
		return err
	}
	if !validID(eventID) {
		return model.ErrNotFound
	}

	err := s.retry.Do(ctx, func() error {
		return s.bookings.Cancel(ctx, user.ID, eventID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("booking cancelled", "user_id", user.ID, "event_id", eventID)
	s.announce(ctx, notifier.ActivityCancelled, user.Username, eventID)
	return nil
}

// ListForEvent returns every booking of an event. Admin only.
func (s *BookingService) ListForEvent(ctx context.Context, admin *model.User, eventID string) ([]model.EventBooking, error) {
	if err := policy.RequireAdmin(admin); err != nil {
		return nil, err
	}
	if !validID(eventID) {
		return nil, model.ErrNotFound
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.bookings.ListByEvent(ctx, eventID)
}

// ListForUser returns the caller's bookings, newest first.
func (s *BookingService) ListForUser(ctx context.Context, user *model.User) ([]model.UserBooking, error) {
	if err := policy.RequireAuthenticated(user); err != nil {
		return nil, err
	}
	return s.bookings.ListByUser(ctx, user.ID)
}

// Search matches query against event titles and descriptions. A blank query
// matches nothing.
func (s *BookingService) Search(ctx context.Context, query string) ([]model.Event, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Event{}, nil
	}
	return s.events.Search(ctx, query)
}

// Browse returns all events ordered by start time.
func (s *BookingService) Browse(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// Get returns a single event.
func (s *BookingService) Get(ctx context.Context, eventID string) (*model.Event, error) {
	if !validID(eventID) {
		return nil, model.ErrNotFound
	}
	return s.events.GetByID(ctx, eventID)
}

// announce reports committed activity. Failures are logged only; the
// booking change is already durable.
func (s *BookingService) announce(ctx context.Context, kind notifier.ActivityKind, username, eventID string) {
	if s.notifier == nil {
		return
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		s.logger.Warn("load event for notification", "event_id", eventID, "err", err)
		return
	}

	activities := []notifier.Activity{{Kind: kind, Username: username, Event: *event}}
	if kind == notifier.ActivityBooked && event.IsFull() {
		activities = append(activities, notifier.Activity{Kind: notifier.ActivitySoldOut, Event: *event})
	}
	for _, a := range activities {
		if err := s.notifier.NotifyActivity(ctx, a); err != nil {
			s.logger.Warn("notify booking activity", "kind", a.Kind, "event_id", eventID, "err", fmt.Errorf("notifier: %w", err))
		}
	}
}
