package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/shedview/shedview-api/internal/http/api"
	"github.com/shedview/shedview-api/internal/repository"
)

// TenantConfig holds tenant resolution settings.
type TenantConfig struct {
	BaseDomain       string
	MarketingURL     string
	AllowLocalhost   bool
	DevClubSubdomain string
}

// TenantResolver resolves the Host header to a club and binds it to the
// request context. Resolution order: exact custom domain, then
// <sub>.<base_domain>, then the marketing redirect for the bare/base
// host, then the dev club for localhost. Anything else is a 404.
func TenantResolver(clubs repository.ClubRepository, cfg TenantConfig) func(http.Handler) http.Handler {
	base := strings.ToLower(cfg.BaseDomain)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := normalizeHost(r.Host)
			if host == "" {
				api.WriteError(w, r, http.StatusNotFound, api.CodeNotFound, "unknown host", nil)
				return
			}

			ctx := r.Context()

			// Exact custom-domain match wins over subdomains.
			if club, err := clubs.GetByCustomDomain(ctx, host); err == nil && club.IsActive() {
				next.ServeHTTP(w, r.WithContext(WithClub(ctx, club)))
				return
			}

			if sub, ok := strings.CutSuffix(host, "."+base); ok && sub != "" && !strings.Contains(sub, ".") {
				if club, err := clubs.GetBySubdomain(ctx, sub); err == nil && club.IsActive() {
					next.ServeHTTP(w, r.WithContext(WithClub(ctx, club)))
					return
				}
			}

			// Marketing root.
			if host == base || host == "www."+base {
				http.Redirect(w, r, cfg.MarketingURL, http.StatusFound)
				return
			}

			if cfg.AllowLocalhost && isLocalhost(host) && cfg.DevClubSubdomain != "" {
				if club, err := clubs.GetBySubdomain(ctx, cfg.DevClubSubdomain); err == nil {
					next.ServeHTTP(w, r.WithContext(WithClub(ctx, club)))
					return
				}
			}

			api.WriteError(w, r, http.StatusNotFound, api.CodeNotFound, "no club for this domain", nil)
		})
	}
}

// normalizeHost lowercases the host and strips any port.
func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
