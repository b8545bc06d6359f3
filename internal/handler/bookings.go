package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// Reserve handles POST /events/{id}/booking
// Books one seat for the current user.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Reserve(r.Context(), auth.UserFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// Cancel handles DELETE /events/{id}/booking
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.Cancel(r.Context(), auth.UserFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeMessage(w, r, http.StatusOK, "booking_cancelled")
}

// MyBookings handles GET /me/bookings
func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListForUser(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []model.UserBooking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}
