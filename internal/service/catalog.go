package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/policy"
)

const (
	maxTitleLength       = 128
	maxDescriptionLength = 256
	maxLocationLength    = 64
	maxTotalSeats        = 100_000
	defaultEventTime     = "00:00"
)

// CatalogService handles event administration. Every method checks the
// admin role before touching the store.
type CatalogService struct {
	events EventStore
	retry  RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewCatalogService constructs a CatalogService. now may be nil.
func NewCatalogService(events EventStore, retry RetryPolicy, logger *slog.Logger, now func() time.Time) *CatalogService {
	if now == nil {
		now = time.Now
	}
	return &CatalogService{
		events: events,
		retry:  retry.withDefaults(),
		logger: logger,
		now:    now,
	}
}

// Create validates req and stores a new event with all seats available.
func (s *CatalogService) Create(ctx context.Context, admin *model.User, req model.EventRequest) (*model.Event, error) {
	if err := policy.RequireAdmin(admin); err != nil {
		return nil, err
	}
	e, err := eventFromRequest(req)
	if err != nil {
		return nil, err
	}
	e.ID = uuid.NewString()
	e.SeatsLeft = e.TotalSeats
	e.CreatedBy = admin.Username
	e.CreatedAt = s.now().UTC()

	if err := s.events.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", e.ID, "title", e.Title, "by", admin.Username)
	return e, nil
}

// Edit replaces the mutable fields of an event. Seats already booked stay
// booked: the new seats_left is the new total minus the booking count.
func (s *CatalogService) Edit(ctx context.Context, admin *model.User, eventID string, req model.EventRequest) (*model.Event, error) {
	if err := policy.RequireAdmin(admin); err != nil {
		return nil, err
	}
	if !validID(eventID) {
		return nil, model.ErrNotFound
	}
	e, err := eventFromRequest(req)
	if err != nil {
		return nil, err
	}
	e.ID = eventID

	err = s.retry.Do(ctx, func() error {
		return s.events.Update(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event edited", "event_id", e.ID, "total_seats", e.TotalSeats, "seats_left", e.SeatsLeft, "by", admin.Username)
	return e, nil
}

// Delete removes an event and, with it, its bookings.
func (s *CatalogService) Delete(ctx context.Context, admin *model.User, eventID string) error {
	if err := policy.RequireAdmin(admin); err != nil {
		return err
	}
	if !validID(eventID) {
		return model.ErrNotFound
	}
	err := s.retry.Do(ctx, func() error {
		return s.events.Delete(ctx, eventID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("event deleted", "event_id", eventID, "by", admin.Username)
	return nil
}

// Summary aggregates booking data across all events.
func (s *CatalogService) Summary(ctx context.Context, admin *model.User) (*model.BookingSummary, error) {
	if err := policy.RequireAdmin(admin); err != nil {
		return nil, err
	}
	lines, err := s.events.Summary(ctx)
	if err != nil {
		return nil, err
	}

	out := &model.BookingSummary{Events: make([]model.EventSummary, 0, len(lines))}
	for _, l := range lines {
		if l.TotalSeats > 0 {
			l.FillRatio = float64(l.Bookings) / float64(l.TotalSeats)
		}
		l.Consistent = l.SeatsLeft == l.TotalSeats-l.Bookings
		if !l.Consistent {
			s.logger.Error("capacity drift detected", "event_id", l.EventID,
				"total_seats", l.TotalSeats, "seats_left", l.SeatsLeft, "bookings", l.Bookings)
		}
		out.Events = append(out.Events, l)
		out.TotalEvents++
		out.TotalSeats += l.TotalSeats
		out.TotalBookings += l.Bookings
	}
	return out, nil
}

// eventFromRequest validates req and converts it to an event without
// identity or seat bookkeeping.
func eventFromRequest(req model.EventRequest) (*model.Event, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	location := strings.TrimSpace(req.Location)

	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", model.ErrInvalid)
	case utf8.RuneCountInString(title) > maxTitleLength:
		return nil, fmt.Errorf("%w: title cannot exceed %d characters", model.ErrInvalid, maxTitleLength)
	case utf8.RuneCountInString(description) > maxDescriptionLength:
		return nil, fmt.Errorf("%w: description cannot exceed %d characters", model.ErrInvalid, maxDescriptionLength)
	case utf8.RuneCountInString(location) > maxLocationLength:
		return nil, fmt.Errorf("%w: location cannot exceed %d characters", model.ErrInvalid, maxLocationLength)
	case req.TotalSeats <= 0:
		return nil, fmt.Errorf("%w: total_seats must be a positive integer", model.ErrInvalid)
	case req.TotalSeats > maxTotalSeats:
		return nil, fmt.Errorf("%w: total_seats cannot exceed 100,000", model.ErrInvalid)
	}

	startsAt, err := parseStartsAt(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	e := &model.Event{
		Title:       title,
		Description: description,
		Location:    location,
		TotalSeats:  req.TotalSeats,
	}
	e.SetStartsAt(startsAt)
	return e, nil
}

// parseStartsAt combines a YYYY-MM-DD date and an optional HH:MM time into a
// wall-clock timestamp stored as UTC.
func parseStartsAt(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", model.ErrInvalid)
	}
	if clock == "" {
		clock = defaultEventTime
	}
	t, err := time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD and time HH:MM", model.ErrInvalid)
	}
	return t, nil
}
