package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, starts_at, location, total_seats, seats_left, created_by, created_at`

// EventRepository handles persistence for the event catalog.
type EventRepository struct {
	tx txRunner
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool, opts Options) *EventRepository {
	return &EventRepository{tx: newTxRunner(db, opts)}
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e        model.Event
		startsAt time.Time
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &startsAt, &e.Location,
		&e.TotalSeats, &e.SeatsLeft, &e.CreatedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.SetStartsAt(startsAt)
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Create inserts a new event. A duplicate title fails with model.ErrConflict.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	return r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO events (`+eventColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.Title, e.Description, e.StartsAt, e.Location,
			e.TotalSeats, e.SeatsLeft, e.CreatedBy, e.CreatedAt,
		)
		if code, _ := pgCode(err); code == codeUniqueViolation {
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
	var event *model.Event
	err := r.tx.query(ctx, func(ctx context.Context, db *pgxpool.Pool) error {
		e, err := scanEvent(db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		event = e
		return nil
	})
	return event, err
}

// List returns all events ordered by start time.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	err := r.tx.query(ctx, func(ctx context.Context, db *pgxpool.Pool) error {
		rows, err := db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at, title`)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		events, err = collectEvents(rows)
		return err
	})
	return events, err
}

// Search returns events whose title or description contains query,
// ignoring case. The query is matched literally.
func (r *EventRepository) Search(ctx context.Context, query string) ([]model.Event, error) {
	var events []model.Event
	err := r.tx.query(ctx, func(ctx context.Context, db *pgxpool.Pool) error {
		rows, err := db.Query(ctx,
			`SELECT `+eventColumns+`
			 FROM events
			 WHERE title ILIKE $1 ESCAPE '\' OR description ILIKE $1 ESCAPE '\'
			 ORDER BY starts_at, title`,
			containsPattern(query),
		)
		if err != nil {
			return fmt.Errorf("search events: %w", err)
		}
		events, err = collectEvents(rows)
		return err
	})
	return events, err
}

// Update replaces the mutable fields of an event while preserving the seats
// already consumed by bookings: seats_left becomes total_seats minus the
// current booking count. Shrinking below that count fails with
// model.ErrConflict. On success e carries the stored row.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) error {
	return r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, e.ID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock event row: %w", err)
		}

		var booked int
		if err := tx.QueryRow(ctx,
			`SELECT count(*) FROM bookings WHERE event_id = $1`, e.ID,
		).Scan(&booked); err != nil {
			return fmt.Errorf("count bookings: %w", err)
		}
		if e.TotalSeats < booked {
			return fmt.Errorf("%w: total seats %d is below the %d existing bookings",
				model.ErrConflict, e.TotalSeats, booked)
		}

		stored, err := scanEvent(tx.QueryRow(ctx,
			`UPDATE events
			 SET title = $2, description = $3, starts_at = $4, location = $5,
			     total_seats = $6, seats_left = $6 - $7
			 WHERE id = $1
			 RETURNING `+eventColumns,
			e.ID, e.Title, e.Description, e.StartsAt, e.Location, e.TotalSeats, booked,
		))
		if code, _ := pgCode(err); code == codeUniqueViolation {
			return fmt.Errorf("%w: an event titled %q already exists", model.ErrConflict, e.Title)
		}
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		*e = *stored
		return nil
	})
}

// Delete removes an event. Its bookings are removed by the foreign key
// cascade.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	return r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// Summary returns per-event booking aggregates, computed from the ledger.
func (r *EventRepository) Summary(ctx context.Context) ([]model.EventSummary, error) {
	var out []model.EventSummary
	err := r.tx.query(ctx, func(ctx context.Context, db *pgxpool.Pool) error {
		rows, err := db.Query(ctx,
			`SELECT e.id, e.title, e.total_seats, e.seats_left, count(b.id)
			 FROM events e
			 LEFT JOIN bookings b ON b.event_id = e.id
			 GROUP BY e.id
			 ORDER BY e.starts_at, e.title`,
		)
		if err != nil {
			return fmt.Errorf("summarise events: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var s model.EventSummary
			if err := rows.Scan(&s.EventID, &s.Title, &s.TotalSeats, &s.SeatsLeft, &s.Bookings); err != nil {
				return fmt.Errorf("scan summary: %w", err)
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}
