package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/notifier"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository/sqlite"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingNotifier struct {
	mu         sync.Mutex
	activities []notifier.Activity
	err        error
}

func (n *recordingNotifier) NotifyActivity(_ context.Context, a notifier.Activity) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activities = append(n.activities, a)
	return n.err
}

func (n *recordingNotifier) kinds() []notifier.ActivityKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifier.ActivityKind
	for _, a := range n.activities {
		out = append(out, a.Kind)
	}
	return out
}

type fixture struct {
	users    *sqlite.UserRepository
	events   *sqlite.EventRepository
	bookings *BookingService
	catalog  *CatalogService
	notes    *recordingNotifier
	admin    *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	opts := sqlite.Options{TxTimeout: 10 * time.Second}
	f := &fixture{
		users:  sqlite.NewUserRepository(db, opts),
		events: sqlite.NewEventRepository(db, opts),
		notes:  &recordingNotifier{},
	}
	retry := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}
	f.bookings = NewBookingService(f.events, sqlite.NewBookingRepository(db, opts), f.notes, retry, discard)
	f.catalog = NewCatalogService(f.events, retry, discard, nil)
	f.admin = f.addUser(t, "admin", model.RoleAdmin)
	return f
}

func (f *fixture) addUser(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) addEvent(t *testing.T, title string, seats int) *model.Event {
	t.Helper()
	e, err := f.catalog.Create(context.Background(), f.admin, model.EventRequest{
		Title:       title,
		Description: "description of " + title,
		Date:        "2030-06-01",
		Time:        "19:00",
		Location:    "Main Hall",
		TotalSeats:  seats,
	})
	require.NoError(t, err)
	return e
}

func eventRequest(title string, seats int) model.EventRequest {
	return model.EventRequest{Title: title, Date: "2030-01-01", TotalSeats: seats}
}

func TestCatalog_NonAdminIsForbiddenWithoutMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.addUser(t, "mallory", model.RoleUser)
	event := f.addEvent(t, "Protected", 10)

	_, err := f.catalog.Create(ctx, user, eventRequest("Sneaky", 5))
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.catalog.Edit(ctx, user, event.ID, eventRequest("Hijacked", 1))
	assert.ErrorIs(t, err, model.ErrForbidden)

	assert.ErrorIs(t, f.catalog.Delete(ctx, user, event.ID), model.ErrForbidden)

	_, err = f.catalog.Summary(ctx, user)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.catalog.Create(ctx, nil, eventRequest("Anonymous", 5))
	assert.ErrorIs(t, err, model.ErrAuthFailure)

	events, err := f.bookings.Browse(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Protected", events[0].Title)
	assert.Equal(t, 10, events[0].TotalSeats)
}

func TestCatalog_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		req  model.EventRequest
	}{
		{"missing title", model.EventRequest{Date: "2030-01-01", TotalSeats: 1}},
		{"zero seats", eventRequest("Zero", 0)},
		{"too many seats", eventRequest("Huge", 100_001)},
		{"missing date", model.EventRequest{Title: "No Date", TotalSeats: 1}},
		{"bad date", model.EventRequest{Title: "Bad Date", Date: "01/02/2030", TotalSeats: 1}},
		{"bad time", model.EventRequest{Title: "Bad Time", Date: "2030-01-02", Time: "25:00", TotalSeats: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.catalog.Create(ctx, f.admin, tt.req)
			assert.ErrorIs(t, err, model.ErrInvalid)
		})
	}
}

func TestCatalog_CreateDefaults(t *testing.T) {
	f := newFixture(t)
	e, err := f.catalog.Create(context.Background(), f.admin, eventRequest("Midnight", 3))
	require.NoError(t, err)

	assert.Equal(t, "00:00", e.Time)
	assert.Equal(t, "2030-01-01", e.Date)
	assert.Equal(t, 3, e.SeatsLeft)
	assert.Equal(t, "admin", e.CreatedBy)

	_, err = f.catalog.Create(context.Background(), f.admin, eventRequest("Midnight", 3))
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestCatalog_EditPreservesBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.addEvent(t, "Expo", 2)
	alice := f.addUser(t, "alice", model.RoleUser)
	_, err := f.bookings.Reserve(ctx, alice, event.ID)
	require.NoError(t, err)

	edited, err := f.catalog.Edit(ctx, f.admin, event.ID, eventRequest("Expo", 6))
	require.NoError(t, err)
	assert.Equal(t, 6, edited.TotalSeats)
	assert.Equal(t, 5, edited.SeatsLeft)

	_, err = f.catalog.Edit(ctx, f.admin, event.ID, eventRequest("Expo", 0))
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = f.catalog.Edit(ctx, f.admin, "not-a-uuid", eventRequest("Expo", 6))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCatalog_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.addEvent(t, "Doomed", 2)
	alice := f.addUser(t, "alice", model.RoleUser)
	_, err := f.bookings.Reserve(ctx, alice, event.ID)
	require.NoError(t, err)

	require.NoError(t, f.catalog.Delete(ctx, f.admin, event.ID))

	mine, err := f.bookings.ListForUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.ErrorIs(t, f.catalog.Delete(ctx, f.admin, event.ID), model.ErrNotFound)
}

func TestCatalog_Summary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addEvent(t, "A", 4)
	f.addEvent(t, "B", 6)
	alice := f.addUser(t, "alice", model.RoleUser)
	_, err := f.bookings.Reserve(ctx, alice, a.ID)
	require.NoError(t, err)

	summary, err := f.catalog.Summary(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalEvents)
	assert.Equal(t, 10, summary.TotalSeats)
	assert.Equal(t, 1, summary.TotalBookings)
	require.Len(t, summary.Events, 2)
	assert.Equal(t, "A", summary.Events[0].Title)
	assert.InDelta(t, 0.25, summary.Events[0].FillRatio, 1e-9)
	for _, line := range summary.Events {
		assert.True(t, line.Consistent)
	}
}

func TestBooking_ReserveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.addEvent(t, "Popular", 5)
	alice := f.addUser(t, "alice", model.RoleUser)

	_, err := f.bookings.Reserve(ctx, alice, event.ID)
	require.NoError(t, err)
	_, err = f.bookings.Reserve(ctx, alice, event.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyBooked)

	list, err := f.bookings.ListForEvent(ctx, f.admin, event.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)

	got, err := f.bookings.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.SeatsLeft)
}

func TestBooking_CancelRestoresCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.addEvent(t, "Flexible", 1)
	alice := f.addUser(t, "alice", model.RoleUser)

	_, err := f.bookings.Reserve(ctx, alice, event.ID)
	require.NoError(t, err)
	require.NoError(t, f.bookings.Cancel(ctx, alice, event.ID))

	got, err := f.bookings.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SeatsLeft)

	mine, err := f.bookings.ListForUser(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)

	assert.ErrorIs(t, f.bookings.Cancel(ctx, alice, event.ID), model.ErrNotFound)
	assert.ErrorIs(t, f.bookings.Cancel(ctx, nil, event.ID), model.ErrAuthFailure)
}

func TestBooking_AccessAndLookupFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.addEvent(t, "Private List", 3)
	alice := f.addUser(t, "alice", model.RoleUser)

	_, err := f.bookings.ListForEvent(ctx, alice, event.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.bookings.ListForEvent(ctx, f.admin, uuid.NewString())
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.bookings.Reserve(ctx, nil, event.ID)
	assert.ErrorIs(t, err, model.ErrAuthFailure)

	_, err = f.bookings.Reserve(ctx, alice, "42")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.bookings.Get(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBooking_SoldOutAndNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	event := f.addEvent(t, "Tiny", 1)
	alice := f.addUser(t, "alice", model.RoleUser)
	bob := f.addUser(t, "bob", model.RoleUser)

	_, err := f.bookings.Reserve(ctx, alice, event.ID)
	require.NoError(t, err)
	_, err = f.bookings.Reserve(ctx, bob, event.ID)
	assert.ErrorIs(t, err, model.ErrSoldOut)

	assert.Equal(t, []notifier.ActivityKind{notifier.ActivityBooked, notifier.ActivitySoldOut}, f.notes.kinds())
}

func TestBooking_NotifierFailureDoesNotFailReserve(t *testing.T) {
	f := newFixture(t)
	f.notes.err = errors.New("discord down")
	event := f.addEvent(t, "Resilient", 2)
	alice := f.addUser(t, "alice", model.RoleUser)

	_, err := f.bookings.Reserve(context.Background(), alice, event.ID)
	require.NoError(t, err)
}

func TestBooking_ConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const seats, users = 3, 12
	event := f.addEvent(t, "Rush", seats)

	var people []*model.User
	for i := 0; i < users; i++ {
		people = append(people, f.addUser(t, "user"+uuid.NewString()[:8], model.RoleUser))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		soldOut int
	)
	for _, u := range people {
		wg.Add(1)
		go func(u *model.User) {
			defer wg.Done()
			_, err := f.bookings.Reserve(ctx, u, event.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, model.ErrSoldOut) {
				soldOut++
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, seats, ok)
	assert.Equal(t, users-seats, soldOut)
}

func TestBooking_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addEvent(t, "Tech Conference 2024", 10)
	_, err := f.catalog.Create(ctx, f.admin, model.EventRequest{
		Title: "Go Day", Description: "A conference for gophers", Date: "2030-02-02", TotalSeats: 5,
	})
	require.NoError(t, err)
	f.addEvent(t, "Yoga", 10)

	for _, q := range []string{"", "   "} {
		found, err := f.bookings.Search(ctx, q)
		require.NoError(t, err)
		assert.NotNil(t, found)
		assert.Empty(t, found)
	}

	found, err := f.bookings.Search(ctx, "conf")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = f.bookings.Search(ctx, "  YOGA ")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()
	p := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	t.Run("retries transient until success", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func() error {
			calls++
			if calls < 3 {
				return model.ErrTransient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func() error {
			calls++
			return model.ErrTransient
		})
		assert.ErrorIs(t, err, model.ErrTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func() error {
			calls++
			return model.ErrSoldOut
		})
		assert.ErrorIs(t, err, model.ErrSoldOut)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when context is done", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := RetryPolicy{Attempts: 5, BaseDelay: time.Hour}.Do(cctx, func() error {
			calls++
			return model.ErrTransient
		})
		assert.ErrorIs(t, err, model.ErrTransient)
		assert.Equal(t, 1, calls)
	})
}
