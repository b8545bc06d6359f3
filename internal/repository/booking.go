package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BookingRepository handles persistence for the booking ledger.
type BookingRepository struct {
	tx txRunner
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool, opts Options) *BookingRepository {
	return &BookingRepository{tx: newTxRunner(db, opts)}
}

// lockEvent takes the row lock every capacity mutation serialises on and
// returns the event's counters.
func lockEvent(ctx context.Context, tx pgx.Tx, eventID string) (totalSeats, seatsLeft int, err error) {
	err = tx.QueryRow(ctx,
		`SELECT total_seats, seats_left FROM events WHERE id = $1 FOR UPDATE`,
		eventID,
	).Scan(&totalSeats, &seatsLeft)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, model.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock event row: %w", err)
	}
	return totalSeats, seatsLeft, nil
}

// Reserve books one seat for userID on eventID.
//
// Two transactions reading seats_left without a lock can both see the last
// seat and both book it. SELECT ... FOR UPDATE on the event row makes any
// concurrent reserve, cancel or edit of the same event wait until this
// transaction commits or rolls back, so the check and the decrement below
// observe the same value.
//
// Failures, in order: model.ErrNotFound, model.ErrAlreadyBooked,
// model.ErrSoldOut.
func (r *BookingRepository) Reserve(ctx context.Context, userID, eventID string) (*model.Booking, error) {
	var booking *model.Booking
	err := r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, seatsLeft, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM bookings WHERE user_id = $1 AND event_id = $2)`,
			userID, eventID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if exists {
			return model.ErrAlreadyBooked
		}

		if seatsLeft <= 0 {
			return model.ErrSoldOut
		}

		tag, err := tx.Exec(ctx,
			`UPDATE events SET seats_left = seats_left - 1 WHERE id = $1 AND seats_left > 0`,
			eventID,
		)
		if err != nil {
			return fmt.Errorf("decrement seats_left: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return model.ErrSoldOut
		}

		b := &model.Booking{
			ID:        uuid.NewString(),
			UserID:    userID,
			EventID:   eventID,
			CreatedAt: time.Now().UTC(),
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO bookings (id, user_id, event_id, created_at) VALUES ($1, $2, $3, $4)`,
			b.ID, b.UserID, b.EventID, b.CreatedAt,
		)
		switch code, _ := pgCode(err); {
		case code == codeUniqueViolation:
			return model.ErrAlreadyBooked
		case code == codeForeignKeyViolation:
			return fmt.Errorf("%w: user %s", model.ErrNotFound, userID)
		case err != nil:
			return fmt.Errorf("insert booking: %w", err)
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Cancel removes userID's booking for eventID and returns the seat.
// A missing booking is model.ErrNotFound. If returning the seat would push
// seats_left past total_seats the transaction is rolled back with
// model.ErrInvariantViolation.
func (r *BookingRepository) Cancel(ctx context.Context, userID, eventID string) error {
	return r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		totalSeats, seatsLeft, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM bookings WHERE user_id = $1 AND event_id = $2`,
			userID, eventID,
		)
		if err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotFound
		}

		if seatsLeft+1 > totalSeats {
			return fmt.Errorf("%w: event %s would have %d seats left of %d",
				model.ErrInvariantViolation, eventID, seatsLeft+1, totalSeats)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE events SET seats_left = seats_left + 1 WHERE id = $1`,
			eventID,
		); err != nil {
			return fmt.Errorf("increment seats_left: %w", err)
		}
		return nil
	})
}

// ListByEvent returns the bookings for an event with the holder's username.
func (r *BookingRepository) ListByEvent(ctx context.Context, eventID string) ([]model.EventBooking, error) {
	var out []model.EventBooking
	err := r.tx.query(ctx, func(ctx context.Context, db *pgxpool.Pool) error {
		rows, err := db.Query(ctx,
			`SELECT b.id, b.user_id, b.event_id, b.created_at, u.username
			 FROM bookings b
			 JOIN users u ON u.id = b.user_id
			 WHERE b.event_id = $1
			 ORDER BY b.created_at ASC`,
			eventID,
		)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var b model.EventBooking
			if err := rows.Scan(&b.ID, &b.UserID, &b.EventID, &b.CreatedAt, &b.Username); err != nil {
				return fmt.Errorf("scan booking: %w", err)
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}

// ListByUser returns a user's bookings with event details, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]model.UserBooking, error) {
	var out []model.UserBooking
	err := r.tx.query(ctx, func(ctx context.Context, db *pgxpool.Pool) error {
		rows, err := db.Query(ctx,
			`SELECT b.id, b.user_id, b.event_id, b.created_at, e.title, e.starts_at, e.location
			 FROM bookings b
			 JOIN events e ON e.id = b.event_id
			 WHERE b.user_id = $1
			 ORDER BY b.created_at DESC`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("list user bookings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var b model.UserBooking
			if err := rows.Scan(&b.ID, &b.UserID, &b.EventID, &b.CreatedAt,
				&b.EventTitle, &b.EventStartsAt, &b.EventLocation); err != nil {
				return fmt.Errorf("scan user booking: %w", err)
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}
