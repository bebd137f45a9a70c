// Package routes assembles the middleware chain and route table. The
// middleware order is the contract: proxy/security, CORS, body limits,
// tenant resolution, rate limiting, then dispatch.
package routes

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shedview/shedview-api/internal/auth"
	"github.com/shedview/shedview-api/internal/config"
	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/http/handlers"
	"github.com/shedview/shedview-api/internal/http/mw"
	"github.com/shedview/shedview-api/internal/repository"
	"github.com/shedview/shedview-api/internal/scheduler"
)

// Deps carries everything the router needs.
type Deps struct {
	Cfg           *config.Config
	DB            *sql.DB
	Repos         *repository.Repositories
	Encryptor     *crypto.Encryptor
	Issuer        *auth.TokenIssuer
	Executor      *scheduler.Executor
	CustomDomains []string // for the CORS allow-list, loaded at startup
	Logger        *slog.Logger
}

// New builds the full router.
func New(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	// Transport hardening. RealIP honors one trusted proxy hop.
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(mw.SecurityHeaders)

	router.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin(d.Cfg.BaseDomain, d.CustomDomains),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// JSON bodies are capped at 1MB.
	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(mw.RequestLogger(logger))

	public := handlers.NewPublicHandler(d.Repos, d.Cfg.DaysAhead, logger)
	admin := handlers.NewAdminHandler(d.Repos, d.Encryptor, d.Issuer, d.Executor, logger)
	health := handlers.NewHealthHandler(d.DB)

	// Health is reachable without tenant context for platform monitors.
	router.Get("/api/v1/health", health.Health)

	// Everything else is tenant-scoped.
	router.Group(func(r chi.Router) {
		r.Use(mw.TenantResolver(d.Repos.Club, mw.TenantConfig{
			BaseDomain:       d.Cfg.BaseDomain,
			MarketingURL:     d.Cfg.MarketingURL,
			AllowLocalhost:   d.Cfg.AllowLocalhost,
			DevClubSubdomain: d.Cfg.DevClubSubdomain,
		}))

		// Public lane.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimitByClub("public", d.Cfg.PublicRateLimit))

			r.Get("/api/v1/boats", public.ListBoats)
			r.Get("/api/v1/boats/{id}", public.GetBoat)
			r.Get("/api/v1/bookings", public.ListBookings)
			r.Get("/api/v1/config", public.GetConfig)
		})

		// Login: admin lane plus a per-IP brute-force brake.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimitByClub("admin", d.Cfg.AdminRateLimit))
			r.Use(mw.RateLimitLoginByIP(d.Cfg.LoginRateLimitIP))

			r.Post("/api/v1/admin/login", admin.Login)
		})

		// Admin lane, token required and bound to the resolved club.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimitByClub("admin", d.Cfg.AdminRateLimit))
			r.Use(mw.AdminAuth(d.Issuer, d.Repos.User))

			r.Get("/api/v1/admin/status", admin.Status)
			r.Put("/api/v1/admin/credentials", admin.UpdateCredentials)
			r.Put("/api/v1/admin/display", admin.UpdateDisplay)
			r.Get("/api/v1/admin/config", admin.GetFullConfig)
			r.Put("/api/v1/admin/config", admin.UpdateFullConfig)
			r.Post("/api/v1/admin/sync", admin.Sync)
		})
	})

	return router
}

// allowOrigin admits the base domain, any subdomain of it, and every
// registered custom domain.
func allowOrigin(baseDomain string, customDomains []string) func(r *http.Request, origin string) bool {
	base := strings.ToLower(baseDomain)
	custom := make(map[string]bool, len(customDomains))
	for _, d := range customDomains {
		custom[strings.ToLower(d)] = true
	}

	return func(r *http.Request, origin string) bool {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Hostname())
		if host == "" {
			return false
		}
		if host == base || strings.HasSuffix(host, "."+base) {
			return true
		}
		return custom[host]
	}
}
