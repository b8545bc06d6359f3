package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, email, password_hash, role, created_at`

// UserRepository handles persistence for the identity store.
type UserRepository struct {
	tx txRunner
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool, opts Options) *UserRepository {
	return &UserRepository{tx: newTxRunner(db, opts)}
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts a user. A taken username or email fails with
// model.ErrConflict naming the field.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt,
		)
		if code, constraint := pgCode(err); code == codeUniqueViolation {
			field := "username"
			if constraint == "users_email_key" {
				field = "email"
			}
			return fmt.Errorf("%w: %s already taken", model.ErrConflict, field)
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var user *model.User
	err := r.tx.query(ctx, func(ctx context.Context, db *pgxpool.Pool) error {
		u, err := scanUser(db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}

// GetByID returns a user or model.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByUsername returns a user or model.ErrNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

// GetByEmail returns a user or model.ErrNotFound. Emails compare
// case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

// UpdatePasswordHash swaps a user's password hash from oldHash to newHash.
// It fails with model.ErrConflict when the stored hash is no longer oldHash
// and with model.ErrNotFound when the user is gone.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	return r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $3 WHERE id = $1 AND password_hash = $2`,
			id, oldHash, newHash,
		)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if !exists {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: password changed concurrently", model.ErrConflict)
	})
}

// Delete removes a user and their bookings, returning each booked seat to its
// event in the same transaction.
//
// The user row is locked first so a concurrent reserve by the same user
// either commits before this transaction reads the ledger or fails its
// foreign key check afterwards. Event rows are then locked in id order, the
// same order every other multi-event writer would use.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.tx.run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user row: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`SELECT e.id FROM events e
			 JOIN bookings b ON b.event_id = e.id
			 WHERE b.user_id = $1
			 ORDER BY e.id
			 FOR UPDATE OF e`,
			id,
		); err != nil {
			return fmt.Errorf("lock booked events: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE events SET seats_left = seats_left + 1
			 WHERE id IN (SELECT event_id FROM bookings WHERE user_id = $1)`,
			id,
		); err != nil {
			return fmt.Errorf("return seats: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
