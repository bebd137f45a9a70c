// Package mw contains HTTP middleware for the shedview API.
package mw

import (
	"context"
	"net/http"

	"github.com/shedview/shedview-api/internal/auth"
	"github.com/shedview/shedview-api/internal/models"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ClubKey is the context key for the resolved tenant club.
	ClubKey ContextKey = "club"
	// ClaimsKey is the context key for verified admin token claims.
	ClaimsKey ContextKey = "claims"
)

// GetClub returns the club resolved by the tenant middleware. Handlers
// must read the tenant from the context only.
func GetClub(ctx context.Context) *models.Club {
	if v := ctx.Value(ClubKey); v != nil {
		if club, ok := v.(*models.Club); ok {
			return club
		}
	}
	return nil
}

// WithClub attaches a resolved club to the context.
func WithClub(ctx context.Context, club *models.Club) context.Context {
	return context.WithValue(ctx, ClubKey, club)
}

// GetClaims returns the verified admin claims, if any.
func GetClaims(ctx context.Context) *auth.Claims {
	if v := ctx.Value(ClaimsKey); v != nil {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims attaches verified claims to the context.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// RequestClub is a convenience for handlers holding an *http.Request.
func RequestClub(r *http.Request) *models.Club {
	return GetClub(r.Context())
}
