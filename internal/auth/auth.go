// Package auth implements the identity provider: account registration,
// credential checks, session tokens and the password reset flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/policy"
)

const (
	minPasswordLength = 8
	maxEmailLength    = 254
)

// UserStore is the identity store the service reads and writes.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) error
	Delete(ctx context.Context, id string) error
}

// ResetSender delivers password reset tokens to their owner.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, user model.User, token string, expiresAt time.Time) error
}

// Service handles accounts and credentials.
type Service struct {
	users  UserStore
	tokens *TokenManager
	hasher Hasher
	sender ResetSender
	logger *slog.Logger
	dummy  string
}

// NewService constructs a Service with its dependencies.
func NewService(users UserStore, tokens *TokenManager, hasher Hasher, sender ResetSender, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		sender: sender,
		logger: logger,
		dummy:  hasher.dummyHash(),
	}
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	return s.createUser(ctx, req, model.RoleUser)
}

func (s *Service) createUser(ctx context.Context, req model.RegisterRequest, role model.Role) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if n := utf8.RuneCountInString(username); n < 3 || n > 64 {
		return nil, fmt.Errorf("%w: username must be 3 to 64 characters", model.ErrInvalid)
	}
	if utf8.RuneCountInString(email) > maxEmailLength {
		return nil, fmt.Errorf("%w: email must be at most %d characters", model.ErrInvalid, maxEmailLength)
	}
	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: email is not a valid address", model.ErrInvalid)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrInvalid, minPasswordLength)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username, "role", u.Role)
	return u, nil
}

// EnsureAdmin creates an admin account with the given credentials unless a
// user with that username already exists.
func (s *Service) EnsureAdmin(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	existing, err := s.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err == nil {
		if !existing.IsAdmin() {
			s.logger.Warn("bootstrap admin username belongs to a regular user", "username", existing.Username)
		}
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("look up admin: %w", err)
	}
	return s.createUser(ctx, req, model.RoleAdmin)
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both fail with model.ErrAuthFailure.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, model.ErrNotFound) {
		s.hasher.Matches(s.dummy, password)
		return nil, fmt.Errorf("%w: invalid username or password", model.ErrAuthFailure)
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !s.hasher.Matches(u.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid username or password", model.ErrAuthFailure)
	}
	return u, nil
}

// Login authenticates and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, string, time.Time, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	token, exp, err := s.tokens.IssueSession(u.ID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return u, token, exp, nil
}

// Identify resolves a session token to the current user record. When the
// token is past half its lifetime a renewed token is returned as well.
func (s *Service) Identify(ctx context.Context, token string) (*model.User, string, time.Time, error) {
	userID, exp, err := s.tokens.ParseSession(token)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, "", time.Time{}, fmt.Errorf("%w: account no longer exists", model.ErrAuthFailure)
	}
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("identify: %w", err)
	}

	if exp.Sub(s.tokens.now()) >= s.tokens.SessionTTL()/2 {
		return u, "", time.Time{}, nil
	}
	renewed, renewedExp, err := s.tokens.IssueSession(u.ID)
	if err != nil {
		s.logger.Warn("session renewal failed", "user_id", u.ID, "err", err)
		return u, "", time.Time{}, nil
	}
	return u, renewed, renewedExp, nil
}

// RequestPasswordReset issues a reset token for the account registered with
// email and hands it to the sender. Unknown emails succeed silently so the
// endpoint does not reveal which addresses are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset: %w", err)
	}

	token, exp, err := s.tokens.IssueReset(u)
	if err != nil {
		return err
	}
	if err := s.sender.SendPasswordReset(ctx, *u, token, exp); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token. A token can be redeemed once: the new
// hash no longer matches the fingerprint it carries, and the hash is swapped
// only if it is still the one the fingerprint was checked against.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, fp, err := s.tokens.ParseReset(token)
	if err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: account no longer exists", model.ErrAuthFailure)
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if !s.tokens.MatchesFingerprint(fp, u.PasswordHash) {
		return fmt.Errorf("%w: reset token already used", model.ErrAuthFailure)
	}

	if utf8.RuneCountInString(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", model.ErrInvalid, minPasswordLength)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	err = s.users.UpdatePasswordHash(ctx, u.ID, u.PasswordHash, hash)
	switch {
	case errors.Is(err, model.ErrConflict):
		return fmt.Errorf("%w: reset token already used", model.ErrAuthFailure)
	case errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("%w: account no longer exists", model.ErrAuthFailure)
	case err != nil:
		return err
	}
	s.logger.Info("password reset", "user_id", u.ID)
	return nil
}

// DeleteUser removes an account. Only the owner or an admin may do so. The
// user's bookings go with it and their seats are returned.
func (s *Service) DeleteUser(ctx context.Context, actor *model.User, userID string) error {
	if err := policy.RequireSelfOrAdmin(actor, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", userID, "by", actor.ID)
	return nil
}

// isValidEmail accepts a bare address with a dotted domain.
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
