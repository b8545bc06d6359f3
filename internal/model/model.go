// Package model defines the core domain types for the event booking system.
package model

import "time"

// Role is the coarse permission tier of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Layouts used for the separate date and time fields of an event.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Event represents a bookable event created by an administrator.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"-"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	TotalSeats  int       `json:"total_seats"`
	SeatsLeft   int       `json:"seats_left"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Booked returns the number of seats consumed by bookings.
func (e *Event) Booked() int {
	return e.TotalSeats - e.SeatsLeft
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.SeatsLeft <= 0
}

// SetStartsAt stores the start time and fills the rendered date/time fields.
func (e *Event) SetStartsAt(t time.Time) {
	e.StartsAt = t
	e.Date = t.Format(DateLayout)
	e.Time = t.Format(TimeLayout)
}

// Booking represents one reserved seat held by a user for an event.
type Booking struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UserBooking is a booking joined with the event fields a user needs to see.
type UserBooking struct {
	Booking
	EventTitle    string    `json:"event_title"`
	EventStartsAt time.Time `json:"event_starts_at"`
	EventLocation string    `json:"event_location"`
}

// EventBooking is a booking joined with the username that holds it.
type EventBooking struct {
	Booking
	Username string `json:"username"`
}

// EventSummary is the per-event line of the admin booking summary.
type EventSummary struct {
	EventID    string  `json:"event_id"`
	Title      string  `json:"title"`
	TotalSeats int     `json:"total_seats"`
	SeatsLeft  int     `json:"seats_left"`
	Bookings   int     `json:"bookings"`
	FillRatio  float64 `json:"fill_ratio"`
	Consistent bool    `json:"consistent"`
}

// BookingSummary aggregates booking data across the catalog.
type BookingSummary struct {
	Events        []EventSummary `json:"events"`
	TotalEvents   int            `json:"total_events"`
	TotalSeats    int            `json:"total_seats"`
	TotalBookings int            `json:"total_bookings"`
}

// EventRequest is the payload for creating or editing an event.
type EventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	TotalSeats  int    `json:"total_seats"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for authenticating.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PasswordResetRequest asks for a reset token to be issued.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirm redeems a reset token.
type PasswordResetConfirm struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// MessageResponse is the body of successful calls with nothing to return.
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionResponse is returned by a successful login.
type SessionResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BookingResult summarises the outcome of a single reservation attempt.
// Used by the concurrent reservation tests.
type BookingResult struct {
	UserID  string
	Booking *Booking
	Error   error
}
