// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/i18n"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// Handler holds all HTTP handlers for the event booking API.
type Handler struct {
	bookings *service.BookingService
	catalog  *service.CatalogService
	users    *auth.Service
	tr       *i18n.Translator
	logger   *slog.Logger
}

// New constructs a Handler.
func New(
	bookings *service.BookingService,
	catalog *service.CatalogService,
	users *auth.Service,
	tr *i18n.Translator,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		bookings: bookings,
		catalog:  catalog,
		users:    users,
		tr:       tr,
		logger:   logger,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// message renders a localized message for the request's Accept-Language.
func (h *Handler) message(r *http.Request, key string) string {
	return h.tr.T(r.Header.Get("Accept-Language"), key, nil)
}

func (h *Handler) writeMessage(w http.ResponseWriter, r *http.Request, status int, key string) {
	writeJSON(w, status, model.MessageResponse{Message: h.message(r, key)})
}

// failure describes how one error kind is reported over HTTP.
type failure struct {
	status int
	code   string
	key    string
}

var failures = map[error]failure{
	model.ErrNotFound:           {http.StatusNotFound, "not_found", "error_not_found"},
	model.ErrAlreadyBooked:      {http.StatusConflict, "already_booked", "error_already_booked"},
	model.ErrSoldOut:            {http.StatusConflict, "sold_out", "error_sold_out"},
	model.ErrForbidden:          {http.StatusForbidden, "forbidden", "error_forbidden"},
	model.ErrConflict:           {http.StatusConflict, "conflict", "error_conflict"},
	model.ErrAuthFailure:        {http.StatusUnauthorized, "auth_failure", "error_auth_failure"},
	model.ErrTransient:          {http.StatusServiceUnavailable, "transient", "error_transient"},
	model.ErrInvalid:            {http.StatusBadRequest, "invalid", "error_invalid"},
	model.ErrInvariantViolation: {http.StatusInternalServerError, "invariant_violation", "error_invariant"},
}

var internalFailure = failure{http.StatusInternalServerError, "internal", "error_internal"}

// writeError maps err to a status code and a localized envelope. Client
// errors carry the error text as detail; server errors are logged instead.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	f, ok := failures[model.Kind(err)]
	if !ok {
		f = internalFailure
	}

	resp := model.ErrorResponse{Error: h.message(r, f.key), Code: f.code}
	if f.status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", f.status, "err", err)
	} else {
		resp.Detail = err.Error()
	}
	if f.status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, f.status, resp)
}

func (h *Handler) writeBadBody(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	status := http.StatusBadRequest
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:  h.message(r, "error_invalid"),
		Code:   "invalid",
		Detail: "invalid request body: " + err.Error(),
	})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
