package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shedview/shedview-api/internal/auth"
	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/http/api"
	"github.com/shedview/shedview-api/internal/http/mw"
	"github.com/shedview/shedview-api/internal/models"
	"github.com/shedview/shedview-api/internal/repository"
	"github.com/shedview/shedview-api/internal/scheduler"
	"github.com/shedview/shedview-api/internal/scraper"
)

const recentJobsLimit = 20

// AdminHandler serves the authenticated club-admin routes.
type AdminHandler struct {
	repos     *repository.Repositories
	encryptor *crypto.Encryptor
	issuer    *auth.TokenIssuer
	executor  *scheduler.Executor
	params    auth.Argon2Params
	logger    *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(repos *repository.Repositories, encryptor *crypto.Encryptor, issuer *auth.TokenIssuer, executor *scheduler.Executor, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		repos:     repos,
		encryptor: encryptor,
		issuer:    issuer,
		executor:  executor,
		params:    auth.DefaultArgon2Params(),
		logger:    logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/admin/login. Failures are uniform: the
// response never reveals whether the email or the password was wrong.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		validationError(w, r, "email", "email and password are required")
		return
	}

	unauthorized := func() {
		api.WriteError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, "invalid email or password", nil)
	}

	user, err := h.repos.User.GetByEmail(r.Context(), club.ID, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		unauthorized()
		return
	}
	if err != nil {
		internalError(w, r, h.logger, "failed to load user", err)
		return
	}
	if !user.IsActive {
		unauthorized()
		return
	}

	match, needsRehash, err := auth.VerifyPassword(req.Password, user.PasswordHash, h.params)
	if err != nil {
		internalError(w, r, h.logger, "failed to verify password", err)
		return
	}
	if !match {
		unauthorized()
		return
	}

	// Raise stored hashes opportunistically when parameters change.
	if needsRehash {
		if newHash, err := auth.HashPassword(req.Password, h.params); err == nil {
			if err := h.repos.User.UpdatePasswordHash(r.Context(), club.ID, user.ID, newHash); err != nil {
				h.logger.Warn("failed to rehash password", "user_id", user.ID, "error", err)
			}
		}
	}

	token, err := h.issuer.Issue(user.ID, club.ID, user.Role)
	if err != nil {
		internalError(w, r, h.logger, "failed to issue token", err)
		return
	}

	api.WriteData(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(h.issuer.Expiry().Seconds()),
		"user": map[string]any{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
			"role":      user.Role,
		},
	})
}

// Status handles GET /api/v1/admin/status: recent jobs plus 24h
// aggregates.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	jobs, err := h.repos.ScrapeJob.ListRecent(r.Context(), club.ID, recentJobsLimit)
	if err != nil {
		internalError(w, r, h.logger, "failed to list scrape jobs", err)
		return
	}
	stats, err := h.repos.ScrapeJob.Stats(r.Context(), club.ID, time.Now().Add(-24*time.Hour))
	if err != nil {
		internalError(w, r, h.logger, "failed to aggregate scrape stats", err)
		return
	}

	if jobs == nil {
		jobs = []*models.ScrapeJob{}
	}
	api.WriteData(w, http.StatusOK, map[string]any{
		"jobs":               jobs,
		"stats":              stats,
		"scrape_in_progress": h.executor.InFlight(club.ID),
	})
}

type credentialsRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// UpdateCredentials handles PUT /api/v1/admin/credentials. Password is
// optional: omitting it updates the URL/username while preserving the
// stored secret. Either way the blob is re-encrypted under a fresh
// nonce and the previous blob discarded.
func (h *AdminHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		validationError(w, r, "url", "must not be empty")
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		validationError(w, r, "username", "must not be empty")
		return
	}

	password := req.Password
	if password == "" {
		if club.CredentialsEncrypted == "" {
			validationError(w, r, "password", "required when no credentials are stored yet")
			return
		}
		current, err := h.encryptor.DecryptCredentials(club.CredentialsEncrypted)
		if err != nil {
			internalError(w, r, h.logger, "failed to decrypt stored credentials", err)
			return
		}
		password = current.Password
	}

	blob, err := h.encryptor.EncryptCredentials(crypto.Credentials{Username: req.Username, Password: password})
	if err != nil {
		internalError(w, r, h.logger, "failed to encrypt credentials", err)
		return
	}

	if err := h.repos.Club.UpdateDataSource(r.Context(), club.ID, strings.TrimSpace(req.URL), blob); err != nil {
		internalError(w, r, h.logger, "failed to store credentials", err)
		return
	}

	api.WriteData(w, http.StatusOK, map[string]any{"updated": true})
}

type displayPatchRequest struct {
	Branding        map[string]any `json:"branding,omitempty"`
	DisplayConfig   map[string]any `json:"display_config,omitempty"`
	TVDisplayConfig map[string]any `json:"tv_display_config,omitempty"`
}

// UpdateDisplay handles PUT /api/v1/admin/display: a partial object is
// deep-merged into the stored documents; unspecified keys survive.
func (h *AdminHandler) UpdateDisplay(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	var req displayPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Branding == nil && req.DisplayConfig == nil && req.TVDisplayConfig == nil {
		validationError(w, r, "body", "at least one of branding, display_config, tv_display_config is required")
		return
	}

	var fieldErrs []models.FieldError
	for prefix, patch := range map[string]map[string]any{
		"branding":          req.Branding,
		"display_config":    req.DisplayConfig,
		"tv_display_config": req.TVDisplayConfig,
	} {
		for _, fe := range models.ValidateDisplayPatch(patch) {
			fe.Field = prefix + "." + fe.Field
			fieldErrs = append(fieldErrs, fe)
		}
	}
	if len(fieldErrs) > 0 {
		api.WriteError(w, r, http.StatusBadRequest, api.CodeValidationError, "invalid display config", fieldErrs)
		return
	}

	if req.Branding != nil {
		club.Branding = models.DeepMerge(club.Branding, req.Branding)
	}
	if req.DisplayConfig != nil {
		club.DisplayConfig = models.DeepMerge(club.DisplayConfig, req.DisplayConfig)
	}
	if req.TVDisplayConfig != nil {
		club.TVDisplayConfig = models.DeepMerge(club.TVDisplayConfig, req.TVDisplayConfig)
	}

	if err := h.repos.Club.UpdateDisplayConfig(r.Context(), club); err != nil {
		internalError(w, r, h.logger, "failed to store display config", err)
		return
	}

	api.WriteData(w, http.StatusOK, map[string]any{
		"branding":          orEmpty(club.Branding),
		"display_config":    orEmpty(club.DisplayConfig),
		"tv_display_config": orEmpty(club.TVDisplayConfig),
	})
}

// GetFullConfig handles GET /api/v1/admin/config.
func (h *AdminHandler) GetFullConfig(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	api.WriteData(w, http.StatusOK, map[string]any{
		"name":              club.Name,
		"subdomain":         club.Subdomain,
		"custom_domain":     club.CustomDomain,
		"data_source_type":  club.DataSourceType,
		"data_source_url":   club.DataSourceURL,
		"branding":          orEmpty(club.Branding),
		"display_config":    orEmpty(club.DisplayConfig),
		"tv_display_config": orEmpty(club.TVDisplayConfig),
	})
}

// UpdateFullConfig handles PUT /api/v1/admin/config: wholesale document
// replacement, still validated. Missing documents are left untouched.
func (h *AdminHandler) UpdateFullConfig(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	var req displayPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var fieldErrs []models.FieldError
	for prefix, doc := range map[string]map[string]any{
		"branding":          req.Branding,
		"display_config":    req.DisplayConfig,
		"tv_display_config": req.TVDisplayConfig,
	} {
		for _, fe := range models.ValidateDisplayPatch(doc) {
			fe.Field = prefix + "." + fe.Field
			fieldErrs = append(fieldErrs, fe)
		}
	}
	if len(fieldErrs) > 0 {
		api.WriteError(w, r, http.StatusBadRequest, api.CodeValidationError, "invalid config", fieldErrs)
		return
	}

	if req.Branding != nil {
		club.Branding = req.Branding
	}
	if req.DisplayConfig != nil {
		club.DisplayConfig = req.DisplayConfig
	}
	if req.TVDisplayConfig != nil {
		club.TVDisplayConfig = req.TVDisplayConfig
	}

	if err := h.repos.Club.UpdateDisplayConfig(r.Context(), club); err != nil {
		internalError(w, r, h.logger, "failed to store config", err)
		return
	}

	h.GetFullConfig(w, r)
}

// Sync handles POST /api/v1/admin/sync: runs an on-demand scrape and
// blocks until it finishes, so the response carries the real outcome. A
// scrape already in flight yields 409.
func (h *AdminHandler) Sync(w http.ResponseWriter, r *http.Request) {
	club := mw.RequestClub(r)

	result, err := h.executor.RequestOnDemand(r.Context(), club)
	switch {
	case errors.Is(err, scraper.ErrScrapeInProgress):
		api.WriteError(w, r, http.StatusConflict, api.CodeScrapeInProgress, "a scrape for this club is already running", nil)
		return
	case scraper.IsConfigError(err):
		api.WriteError(w, r, http.StatusBadRequest, api.CodeValidationError, err.Error(), nil)
		return
	case scraper.IsAuthError(err), scraper.IsUpstreamError(err):
		// Admin clients get the full failure detail (never a stack).
		api.WriteError(w, r, http.StatusBadGateway, api.CodeUpstreamError, err.Error(), result)
		return
	case err != nil:
		internalError(w, r, h.logger, "on-demand scrape failed", err)
		return
	}

	api.WriteData(w, http.StatusOK, result)
}

// decodeBody decodes a JSON request body, rejecting unknown garbage
// with a validation error.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		validationError(w, r, "body", "must be valid JSON")
		return false
	}
	return true
}
