// Package models defines the core data types persisted by the API.
package models

import "time"

// Club statuses.
const (
	ClubStatusActive    = "active"
	ClubStatusSuspended = "suspended"
	ClubStatusTrial     = "trial"
)

// Data source types.
const (
	DataSourceRevsport = "revsport"
)

// User roles.
const (
	RoleClubAdmin  = "club_admin"
	RoleSuperAdmin = "super_admin"
)

// Boat categories.
const (
	BoatCategoryRace   = "race"
	BoatCategoryTinnie = "tinnie"
)

// Scrape job statuses.
const (
	ScrapeStatusRunning   = "running"
	ScrapeStatusCompleted = "completed"
	ScrapeStatusFailed    = "failed"
)

// Club is a tenant. Every other row carries its ID.
type Club struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Subdomain      string `json:"subdomain"`
	CustomDomain   string `json:"custom_domain,omitempty"`
	Status         string `json:"status"`
	DataSourceType string `json:"data_source_type"`
	DataSourceURL  string `json:"data_source_url"`
	// CredentialsEncrypted is base64(nonce || ciphertext || tag); see crypto.
	CredentialsEncrypted string         `json:"-"`
	Branding             map[string]any `json:"branding,omitempty"`
	DisplayConfig        map[string]any `json:"display_config,omitempty"`
	TVDisplayConfig      map[string]any `json:"tv_display_config,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// IsActive reports whether the club should be scraped and served.
func (c *Club) IsActive() bool {
	return c.Status == ClubStatusActive || c.Status == ClubStatusTrial
}

// Timezone returns the club's IANA timezone for scheduling buckets.
// Falls back to Australia/Sydney when the display config doesn't set one.
func (c *Club) Timezone() string {
	if c.DisplayConfig != nil {
		if tz, ok := c.DisplayConfig["timezone"].(string); ok && tz != "" {
			return tz
		}
	}
	return "Australia/Sydney"
}

// User is a club-scoped admin account.
type User struct {
	ID           string    `json:"id"`
	ClubID       string    `json:"club_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Boat is an upstream asset. (ClubID, SourceID) is the upsert key.
// Rows are never deleted so historical bookings stay resolvable.
type Boat struct {
	ID             string         `json:"id"`
	ClubID         string         `json:"club_id"`
	SourceID       string         `json:"source_id"`
	Name           string         `json:"name"`
	BoatType       string         `json:"boat_type,omitempty"`
	BoatCategory   string         `json:"boat_category"`
	Classification string         `json:"classification,omitempty"`
	WeightKG       int            `json:"weight_kg,omitempty"`
	IsDamaged      bool           `json:"is_damaged"`
	DamagedReason  string         `json:"damaged_reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Booking is one reserved slot for a boat. Fully owned by the scraper.
type Booking struct {
	ID          string    `json:"id"`
	ClubID      string    `json:"club_id"`
	BoatID      string    `json:"boat_id"`
	BookingDate string    `json:"booking_date"` // YYYY-MM-DD
	SessionName string    `json:"session_name,omitempty"`
	StartTime   string    `json:"start_time"` // HH:MM, 24h
	EndTime     string    `json:"end_time"`   // HH:MM, 24h
	MemberName  string    `json:"member_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScrapeJob records one scrape attempt. Append-only.
type ScrapeJob struct {
	ID            string     `json:"id"`
	ClubID        string     `json:"club_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DurationMs    int64      `json:"duration_ms"`
	BoatsCount    int        `json:"boats_count"`
	BookingsCount int        `json:"bookings_count"`
	Error         string     `json:"error,omitempty"`
}

// ScrapeStats summarizes recent scrape activity for the admin status view.
type ScrapeStats struct {
	SuccessCount24h int     `json:"success_count_24h"`
	FailureCount24h int     `json:"failure_count_24h"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
}
