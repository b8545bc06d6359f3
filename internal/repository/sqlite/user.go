package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// UserRepository handles persistence for the identity store.
type UserRepository struct {
	tx txRunner
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *gorm.DB, opts Options) *UserRepository {
	return &UserRepository{tx: newTxRunner(db, opts)}
}

func userToDomain(row userRow) *model.User {
	return &model.User{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         model.Role(row.Role),
		CreatedAt:    row.CreatedAt,
	}
}

// Create inserts a user. A taken username or email fails with
// model.ErrConflict naming the field.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.tx.run(ctx, func(tx *gorm.DB) error {
		var taken userRow
		err := tx.Where("username = ? OR LOWER(email) = LOWER(?)", u.Username, u.Email).First(&taken).Error
		switch {
		case err == nil:
			field := "username"
			if taken.Username != u.Username {
				field = "email"
			}
			return fmt.Errorf("%w: %s already taken", model.ErrConflict, field)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("check user uniqueness: %w", err)
		}

		row := userRow{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: u.PasswordHash,
			Role:         string(u.Role),
			CreatedAt:    u.CreatedAt,
		}
		err = tx.Create(&row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: username or email already taken", model.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var row userRow
	err := r.tx.query(ctx, func(db *gorm.DB) error {
		err := db.Where(query, arg).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return userToDomain(row), nil
}

// GetByID returns a user or model.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByUsername returns a user or model.ErrNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByEmail returns a user or model.ErrNotFound. Emails compare
// case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

// UpdatePasswordHash swaps a user's password hash from oldHash to newHash.
// It fails with model.ErrConflict when the stored hash is no longer oldHash
// and with model.ErrNotFound when the user is gone.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error {
	return r.tx.run(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&userRow{}).
			Where("id = ? AND password_hash = ?", id, oldHash).
			Update("password_hash", newHash)
		if res.Error != nil {
			return fmt.Errorf("update password: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return nil
		}
		var count int64
		if err := tx.Model(&userRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if count == 0 {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: password changed concurrently", model.ErrConflict)
	})
}

// Delete removes a user and their bookings, returning each booked seat to its
// event in the same transaction.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.tx.run(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if count == 0 {
			return model.ErrNotFound
		}

		err := tx.Model(&eventRow{}).
			Where("id IN (?)", tx.Model(&bookingRow{}).Select("event_id").Where("user_id = ?", id)).
			Update("seats_left", gorm.Expr("seats_left + 1")).Error
		if err != nil {
			return fmt.Errorf("return seats: %w", err)
		}

		if err := tx.Where("user_id = ?", id).Delete(&bookingRow{}).Error; err != nil {
			return fmt.Errorf("delete user bookings: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&userRow{}).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}
