package mw

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shedview/shedview-api/internal/auth"
	"github.com/shedview/shedview-api/internal/http/api"
	"github.com/shedview/shedview-api/internal/repository"
)

// AdminAuth verifies the bearer token and binds its claims. The token's
// club must match the resolved tenant: a valid token for another club is
// a 403, not a 401 (the caller authenticated fine, just elsewhere). The
// user row is re-read on every request so deactivation takes effect
// immediately rather than at token expiry.
func AdminAuth(issuer *auth.TokenIssuer, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			club := GetClub(r.Context())
			if club == nil {
				api.WriteError(w, r, http.StatusNotFound, api.CodeNotFound, "no club for this domain", nil)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				api.WriteError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, "missing authorization header", nil)
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			claims, err := issuer.Verify(token)
			if err != nil {
				message := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "token expired"
				}
				api.WriteError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, message, nil)
				return
			}

			if claims.ClubID != club.ID {
				api.WriteError(w, r, http.StatusForbidden, api.CodeForbidden, "token does not belong to this club", nil)
				return
			}

			user, err := users.GetByID(r.Context(), claims.ClubID, claims.UserID)
			if err != nil || !user.IsActive {
				api.WriteError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, "account is not active", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
