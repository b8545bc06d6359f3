package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// EventRepository handles persistence for the event catalog.
type EventRepository struct {
	tx txRunner
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *gorm.DB, opts Options) *EventRepository {
	return &EventRepository{tx: newTxRunner(db, opts)}
}

func eventToDomain(row eventRow) model.Event {
	e := model.Event{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Location:    row.Location,
		TotalSeats:  row.TotalSeats,
		SeatsLeft:   row.SeatsLeft,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
	}
	e.SetStartsAt(row.StartsAt)
	return e
}

func eventsToDomain(rows []eventRow) []model.Event {
	if len(rows) == 0 {
		return nil
	}
	out := make([]model.Event, len(rows))
	for i := range rows {
		out[i] = eventToDomain(rows[i])
	}
	return out
}

func eventFromDomain(e *model.Event) eventRow {
	return eventRow{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartsAt:    e.StartsAt,
		Location:    e.Location,
		TotalSeats:  e.TotalSeats,
		SeatsLeft:   e.SeatsLeft,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
}

// Create inserts a new event. A duplicate title fails with model.ErrConflict.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	return r.tx.run(ctx, func(tx *gorm.DB) error {
		row := eventFromDomain(e)
		err := tx.Create(&row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: an event titled %q already exists", model.ErrConflict, e.Title)
		}
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
}

// GetByID returns a single event or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var row eventRow
	err := r.tx.query(ctx, func(db *gorm.DB) error {
		err := db.Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e := eventToDomain(row)
	return &e, nil
}

// List returns all events ordered by start time.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	var rows []eventRow
	err := r.tx.query(ctx, func(db *gorm.DB) error {
		if err := db.Order("starts_at, title").Find(&rows).Error; err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		return nil
	})
	return eventsToDomain(rows), err
}

// Search returns events whose title or description contains query,
// ignoring case. The query is matched literally.
func (r *EventRepository) Search(ctx context.Context, query string) ([]model.Event, error) {
	var rows []eventRow
	pattern := containsPattern(query)
	err := r.tx.query(ctx, func(db *gorm.DB) error {
		err := db.
			Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern).
			Order("starts_at, title").
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("search events: %w", err)
		}
		return nil
	})
	return eventsToDomain(rows), err
}

// Update replaces the mutable fields of an event while preserving the seats
// already consumed by bookings. Shrinking below the booking count fails with
// model.ErrConflict. On success e carries the stored row.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) error {
	return r.tx.run(ctx, func(tx *gorm.DB) error {
		var current eventRow
		err := tx.Where("id = ?", e.ID).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		var booked int64
		if err := tx.Model(&bookingRow{}).Where("event_id = ?", e.ID).Count(&booked).Error; err != nil {
			return fmt.Errorf("count bookings: %w", err)
		}
		if int64(e.TotalSeats) < booked {
			return fmt.Errorf("%w: total seats %d is below the %d existing bookings",
				model.ErrConflict, e.TotalSeats, booked)
		}

		current.Title = e.Title
		current.Description = e.Description
		current.StartsAt = e.StartsAt
		current.Location = e.Location
		current.TotalSeats = e.TotalSeats
		current.SeatsLeft = e.TotalSeats - int(booked)

		err = tx.Model(&eventRow{}).Where("id = ?", e.ID).Updates(map[string]any{
			"title":       current.Title,
			"description": current.Description,
			"starts_at":   current.StartsAt,
			"location":    current.Location,
			"total_seats": current.TotalSeats,
			"seats_left":  current.SeatsLeft,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: an event titled %q already exists", model.ErrConflict, e.Title)
		}
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}

		*e = eventToDomain(current)
		return nil
	})
}

// Delete removes an event together with its bookings.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	return r.tx.run(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&bookingRow{}).Error; err != nil {
			return fmt.Errorf("delete event bookings: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&eventRow{})
		if res.Error != nil {
			return fmt.Errorf("delete event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// Summary returns per-event booking aggregates, computed from the ledger.
func (r *EventRepository) Summary(ctx context.Context) ([]model.EventSummary, error) {
	var out []model.EventSummary
	err := r.tx.query(ctx, func(db *gorm.DB) error {
		err := db.Table("events AS e").
			Select("e.id AS event_id, e.title AS title, e.total_seats AS total_seats, e.seats_left AS seats_left, COUNT(b.id) AS bookings").
			Joins("LEFT JOIN bookings AS b ON b.event_id = e.id").
			Group("e.id").
			Order("e.starts_at, e.title").
			Scan(&out).Error
		if err != nil {
			return fmt.Errorf("summarise events: %w", err)
		}
		return nil
	})
	return out, err
}
