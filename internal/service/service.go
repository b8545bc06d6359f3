// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the store layer.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// EventStore is the event catalog as seen by the services. Both the pgx and
// the gorm/sqlite repositories satisfy it.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	Search(ctx context.Context, query string) ([]model.Event, error)
	Update(ctx context.Context, e *model.Event) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context) ([]model.EventSummary, error)
}

// BookingStore is the booking ledger. Reserve and Cancel adjust the event's
// seat counter in the same transaction as the ledger change.
type BookingStore interface {
	Reserve(ctx context.Context, userID, eventID string) (*model.Booking, error)
	Cancel(ctx context.Context, userID, eventID string) error
	ListByEvent(ctx context.Context, eventID string) ([]model.EventBooking, error)
	ListByUser(ctx context.Context, userID string) ([]model.UserBooking, error)
}

// RetryPolicy retries operations that failed with model.ErrTransient.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetry is used when a service is built with a zero RetryPolicy.
var DefaultRetry = RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetry.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetry.BaseDelay
	}
	return p
}

// Do runs fn until it succeeds, fails with a non-transient error, the
// attempts are used up or ctx is done. The delay doubles after each attempt.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	p = p.withDefaults()
	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, model.ErrTransient) || attempt >= p.Attempts {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		delay *= 2
	}
}

// validID rejects ids that cannot name a stored row. Such lookups are
// reported as model.ErrNotFound without touching the store.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
