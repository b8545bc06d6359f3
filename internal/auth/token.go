package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const (
	purposeSession       = "session"
	purposePasswordReset = "password-reset"
)

type tokenClaims struct {
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 session and password-reset tokens.
type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewTokenManager returns a TokenManager. now may be nil to use time.Now.
func NewTokenManager(secret string, sessionTTL, resetTTL time.Duration, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}
	return &TokenManager{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        now,
	}
}

// SessionTTL is the lifetime of a freshly issued session token.
func (m *TokenManager) SessionTTL() time.Duration { return m.sessionTTL }

func (m *TokenManager) sign(claims tokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (m *TokenManager) parse(raw, purpose string) (*tokenClaims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrAuthFailure, err)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: token issued for %q", model.ErrAuthFailure, claims.Purpose)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", model.ErrAuthFailure)
	}
	return &claims, nil
}

// IssueSession returns a session token for userID and its expiry.
func (m *TokenManager) IssueSession(userID string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.sessionTTL)
	token, err := m.sign(tokenClaims{
		Purpose: purposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	return token, exp, err
}

// ParseSession verifies a session token and returns the user id and expiry.
func (m *TokenManager) ParseSession(raw string) (userID string, expiresAt time.Time, err error) {
	claims, err := m.parse(raw, purposeSession)
	if err != nil {
		return "", time.Time{}, err
	}
	return claims.Subject, claims.ExpiresAt.Time, nil
}

// IssueReset returns a single-purpose password reset token for u. The token
// embeds a fingerprint of u's current password hash, so it stops verifying
// once the password changes.
func (m *TokenManager) IssueReset(u *model.User) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.resetTTL)
	token, err := m.sign(tokenClaims{
		Purpose:     purposePasswordReset,
		Fingerprint: m.fingerprint(u.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	return token, exp, err
}

// ParseReset verifies a reset token and returns the user id it was issued
// for along with the password fingerprint it carries.
func (m *TokenManager) ParseReset(raw string) (userID, fingerprint string, err error) {
	claims, err := m.parse(raw, purposePasswordReset)
	if err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Fingerprint, nil
}

// MatchesFingerprint reports whether fp was derived from passwordHash.
func (m *TokenManager) MatchesFingerprint(fp, passwordHash string) bool {
	return hmac.Equal([]byte(fp), []byte(m.fingerprint(passwordHash)))
}

func (m *TokenManager) fingerprint(passwordHash string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}
