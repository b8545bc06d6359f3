package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// BookingRepository handles persistence for the booking ledger.
type BookingRepository struct {
	tx txRunner
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *gorm.DB, opts Options) *BookingRepository {
	return &BookingRepository{tx: newTxRunner(db, opts)}
}

func loadEvent(tx *gorm.DB, eventID string) (*eventRow, error) {
	var row eventRow
	err := tx.Where("id = ?", eventID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &row, nil
}

// Reserve books one seat for userID on eventID. The decrement is a
// conditional update, so it cannot take seats_left below zero even if two
// writers ever overlap.
func (r *BookingRepository) Reserve(ctx context.Context, userID, eventID string) (*model.Booking, error) {
	var booking *model.Booking
	err := r.tx.run(ctx, func(tx *gorm.DB) error {
		event, err := loadEvent(tx, eventID)
		if err != nil {
			return err
		}

		var dup int64
		if err := tx.Model(&bookingRow{}).
			Where("user_id = ? AND event_id = ?", userID, eventID).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if dup > 0 {
			return model.ErrAlreadyBooked
		}

		if event.SeatsLeft <= 0 {
			return model.ErrSoldOut
		}

		res := tx.Model(&eventRow{}).
			Where("id = ? AND seats_left > 0", eventID).
			Update("seats_left", gorm.Expr("seats_left - 1"))
		if res.Error != nil {
			return fmt.Errorf("decrement seats_left: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return model.ErrSoldOut
		}

		row := bookingRow{
			ID:        uuid.NewString(),
			UserID:    userID,
			EventID:   eventID,
			CreatedAt: time.Now().UTC(),
		}
		err = tx.Omit(clause.Associations).Create(&row).Error
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return model.ErrAlreadyBooked
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return fmt.Errorf("%w: user %s", model.ErrNotFound, userID)
		case err != nil:
			return fmt.Errorf("insert booking: %w", err)
		}

		booking = &model.Booking{
			ID:        row.ID,
			UserID:    row.UserID,
			EventID:   row.EventID,
			CreatedAt: row.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Cancel removes userID's booking for eventID and returns the seat. If
// returning the seat would push seats_left past total_seats the transaction
// is rolled back with model.ErrInvariantViolation.
func (r *BookingRepository) Cancel(ctx context.Context, userID, eventID string) error {
	return r.tx.run(ctx, func(tx *gorm.DB) error {
		event, err := loadEvent(tx, eventID)
		if err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND event_id = ?", userID, eventID).Delete(&bookingRow{})
		if res.Error != nil {
			return fmt.Errorf("delete booking: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}

		if event.SeatsLeft+1 > event.TotalSeats {
			return fmt.Errorf("%w: event %s would have %d seats left of %d",
				model.ErrInvariantViolation, eventID, event.SeatsLeft+1, event.TotalSeats)
		}

		if err := tx.Model(&eventRow{}).
			Where("id = ?", eventID).
			Update("seats_left", gorm.Expr("seats_left + 1")).Error; err != nil {
			return fmt.Errorf("increment seats_left: %w", err)
		}
		return nil
	})
}

// ListByEvent returns the bookings for an event with the holder's username.
func (r *BookingRepository) ListByEvent(ctx context.Context, eventID string) ([]model.EventBooking, error) {
	var rows []struct {
		ID        string
		UserID    string
		EventID   string
		CreatedAt time.Time
		Username  string
	}
	err := r.tx.query(ctx, func(db *gorm.DB) error {
		err := db.Table("bookings AS b").
			Select("b.id AS id, b.user_id AS user_id, b.event_id AS event_id, b.created_at AS created_at, u.username AS username").
			Joins("JOIN users AS u ON u.id = b.user_id").
			Where("b.event_id = ?", eventID).
			Order("b.created_at ASC").
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []model.EventBooking
	for _, row := range rows {
		out = append(out, model.EventBooking{
			Booking:  model.Booking{ID: row.ID, UserID: row.UserID, EventID: row.EventID, CreatedAt: row.CreatedAt},
			Username: row.Username,
		})
	}
	return out, nil
}

// ListByUser returns a user's bookings with event details, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]model.UserBooking, error) {
	var rows []struct {
		ID            string
		UserID        string
		EventID       string
		CreatedAt     time.Time
		EventTitle    string
		EventStartsAt time.Time
		EventLocation string
	}
	err := r.tx.query(ctx, func(db *gorm.DB) error {
		err := db.Table("bookings AS b").
			Select("b.id AS id, b.user_id AS user_id, b.event_id AS event_id, b.created_at AS created_at, " +
				"e.title AS event_title, e.starts_at AS event_starts_at, e.location AS event_location").
			Joins("JOIN events AS e ON e.id = b.event_id").
			Where("b.user_id = ?", userID).
			Order("b.created_at DESC").
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("list user bookings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []model.UserBooking
	for _, row := range rows {
		out = append(out, model.UserBooking{
			Booking:       model.Booking{ID: row.ID, UserID: row.UserID, EventID: row.EventID, CreatedAt: row.CreatedAt},
			EventTitle:    row.EventTitle,
			EventStartsAt: row.EventStartsAt,
			EventLocation: row.EventLocation,
		})
	}
	return out, nil
}
