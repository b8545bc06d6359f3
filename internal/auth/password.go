package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// Hasher produces and checks one-way salted password hashes.
type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt Hasher. A cost of 0 selects bcrypt.DefaultCost.
func NewHasher(cost int) Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h Hasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", model.ErrInvalid, maxPasswordBytes)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Matches reports whether password matches hash.
func (h Hasher) Matches(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// dummyHash lets Authenticate spend the same bcrypt work for unknown users.
func (h Hasher) dummyHash() string {
	b, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), h.cost)
	return string(b)
}
