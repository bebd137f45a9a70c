// Package handlers contains the HTTP handlers for the public and admin
// API surfaces.
package handlers

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shedview/shedview-api/internal/database"
	"github.com/shedview/shedview-api/internal/http/api"
	"github.com/shedview/shedview-api/internal/http/mw"
	"github.com/shedview/shedview-api/internal/models"
	"github.com/shedview/shedview-api/internal/repository"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	maxBookingRange  = 31 // days, inclusive bounds
)

// PublicHandler serves the unauthenticated club-scoped routes.
type PublicHandler struct {
	repos     *repository.Repositories
	daysAhead int
	logger    *slog.Logger
}

// NewPublicHandler creates the public handler.
func NewPublicHandler(repos *repository.Repositories, daysAhead int, logger *slog.Logger) *PublicHandler {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicHandler{repos: repos, daysAhead: daysAhead, logger: logger}
}

// ListBoats handles GET /api/v1/boats.
func (h *PublicHandler) ListBoats(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	limit, offset, ok := parseListParams(w, r)
	if !ok {
		return
	}

	boats, err := h.repos.Boat.ListByClub(r.Context(), club.ID, limit, offset)
	if err != nil {
		internalError(w, r, h.logger, "failed to list boats", err)
		return
	}
	total, err := h.repos.Boat.CountByClub(r.Context(), club.ID)
	if err != nil {
		internalError(w, r, h.logger, "failed to count boats", err)
		return
	}
	if boats == nil {
		boats = []*models.Boat{}
	}

	api.WriteDataMeta(w, http.StatusOK, boats, api.ListMeta{Limit: limit, Offset: offset, Count: len(boats), Total: total})
}

// GetBoat handles GET /api/v1/boats/{id}. A boat in another club is a
// plain 404.
func (h *PublicHandler) GetBoat(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	boat, err := h.repos.Boat.GetByID(r.Context(), club.ID, chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrNotFound) {
		api.WriteError(w, r, http.StatusNotFound, api.CodeNotFound, "boat not found", nil)
		return
	}
	if err != nil {
		internalError(w, r, h.logger, "failed to load boat", err)
		return
	}

	api.WriteData(w, http.StatusOK, boat)
}

// ListBookings handles GET /api/v1/bookings with ?date=, ?from=&to= or
// ?boat= filters. Defaults to the display window [today, today+N].
func (h *PublicHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)
	q := r.URL.Query()

	limit, _, ok := parseListParams(w, r)
	if !ok {
		return
	}

	var from, to string
	switch {
	case q.Get("date") != "":
		date, err := parseDate(q.Get("date"))
		if err != nil {
			validationError(w, r, "date", "must be YYYY-MM-DD")
			return
		}
		from, to = date, date

	case q.Get("from") != "" || q.Get("to") != "":
		if q.Get("from") == "" || q.Get("to") == "" {
			validationError(w, r, "from", "from and to must be provided together")
			return
		}
		fromDate, err := parseDate(q.Get("from"))
		if err != nil {
			validationError(w, r, "from", "must be YYYY-MM-DD")
			return
		}
		toDate, err := parseDate(q.Get("to"))
		if err != nil {
			validationError(w, r, "to", "must be YYYY-MM-DD")
			return
		}
		if fromDate > toDate {
			validationError(w, r, "from", "must not be after to")
			return
		}
		start, _ := time.Parse("2006-01-02", fromDate)
		end, _ := time.Parse("2006-01-02", toDate)
		if end.Sub(start) > maxBookingRange*24*time.Hour {
			validationError(w, r, "to", "range must be at most 31 days")
			return
		}
		from, to = fromDate, toDate

	default:
		now := time.Now()
		from = now.Format("2006-01-02")
		to = now.AddDate(0, 0, h.daysAhead).Format("2006-01-02")
	}

	var bookings []any
	if boatID := q.Get("boat"); boatID != "" {
		rows, err := h.repos.Booking.ListByBoat(r.Context(), club.ID, boatID, from, to, limit)
		if err != nil {
			internalError(w, r, h.logger, "failed to list bookings", err)
			return
		}
		for _, b := range rows {
			bookings = append(bookings, b)
		}
	} else {
		rows, err := h.repos.Booking.ListByDateRange(r.Context(), club.ID, from, to, limit)
		if err != nil {
			internalError(w, r, h.logger, "failed to list bookings", err)
			return
		}
		for _, b := range rows {
			bookings = append(bookings, b)
		}
	}
	if bookings == nil {
		bookings = []any{}
	}

	api.WriteDataMeta(w, http.StatusOK, bookings, map[string]string{"from": from, "to": to})
}

// GetConfig handles GET /api/v1/config with ETag revalidation: the tag
// is the SHA-256 of the JSON body, so any config change invalidates it.
func (h *PublicHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	payload := map[string]any{
		"club": map[string]any{
			"name":      club.Name,
			"subdomain": club.Subdomain,
		},
		"branding":          orEmpty(club.Branding),
		"display_config":    orEmpty(club.DisplayConfig),
		"tv_display_config": orEmpty(club.TVDisplayConfig),
	}

	body, err := json.Marshal(api.Response{Success: true, Data: payload})
	if err != nil {
		internalError(w, r, h.logger, "failed to marshal config", err)
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, must-revalidate")

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HealthHandler serves GET /api/v1/health. Callable without a tenant so
// platform monitors can probe it.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports process and database health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	latency, err := database.PingLatency(h.db)

	dbStatus := "ok"
	status := "ok"
	httpStatus := http.StatusOK
	if err != nil {
		dbStatus = "down"
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	api.WriteData(w, httpStatus, map[string]any{
		"status": status,
		"checks": map[string]any{
			"database": map[string]any{
				"status":    dbStatus,
				"latencyMs": latency.Milliseconds(),
			},
		},
	})
}

// parseListParams extracts limit/offset: limit defaults to 100 and
// clamps at 500; a negative offset is a validation error.
func parseListParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()

	limit = defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			validationError(w, r, "limit", "must be a positive integer")
			return 0, 0, false
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			validationError(w, r, "offset", "must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}

	return limit, offset, true
}

func parseDate(raw string) (string, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

func orEmpty(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	return doc
}

func validationError(w http.ResponseWriter, r *http.Request, field, message string) {
	api.WriteError(w, r, http.StatusBadRequest, api.CodeValidationError, "invalid request",
		[]map[string]string{{"field": field, "message": message}})
}

func internalError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error) {
	logger.Error(message, "error", err, "path", r.URL.Path)
	api.WriteError(w, r, http.StatusInternalServerError, api.CodeInternalError,
		"something went wrong, quote the request id to support", nil)
}
