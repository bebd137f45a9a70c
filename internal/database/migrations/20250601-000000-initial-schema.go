package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250601-000000",
		Description: "Initial schema",
		Up: []string{
			// Clubs - the tenant table. Subdomain and custom_domain
			// collectively identify at most one club.
			`CREATE TABLE IF NOT EXISTS clubs (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				subdomain TEXT UNIQUE NOT NULL,
				custom_domain TEXT UNIQUE,
				status TEXT NOT NULL DEFAULT 'active',
				data_source_type TEXT NOT NULL DEFAULT 'revsport',
				data_source_url TEXT,
				credentials_encrypted TEXT,
				branding_json TEXT,
				display_config_json TEXT,
				tv_display_config_json TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_clubs_subdomain ON clubs(subdomain)`,
			`CREATE INDEX IF NOT EXISTS idx_clubs_custom_domain ON clubs(custom_domain)`,

			// Users - club-scoped admin accounts
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				club_id TEXT NOT NULL REFERENCES clubs(id),
				email TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				full_name TEXT,
				role TEXT NOT NULL DEFAULT 'club_admin',
				is_active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_club_email ON users(club_id, lower(email))`,

			// Boats - upstream assets, upserted on (club_id, source_id)
			`CREATE TABLE IF NOT EXISTS boats (
				id TEXT PRIMARY KEY,
				club_id TEXT NOT NULL REFERENCES clubs(id),
				source_id TEXT NOT NULL,
				name TEXT NOT NULL,
				boat_type TEXT,
				boat_category TEXT NOT NULL DEFAULT 'race',
				classification TEXT,
				weight_kg INTEGER,
				is_damaged INTEGER NOT NULL DEFAULT 0,
				damaged_reason TEXT,
				metadata_json TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_boats_club_source ON boats(club_id, source_id)`,
			`CREATE INDEX IF NOT EXISTS idx_boats_club_id ON boats(club_id)`,

			// Bookings - replaced per window on every scrape
			`CREATE TABLE IF NOT EXISTS bookings (
				id TEXT PRIMARY KEY,
				club_id TEXT NOT NULL REFERENCES clubs(id),
				boat_id TEXT NOT NULL REFERENCES boats(id),
				booking_date TEXT NOT NULL,
				session_name TEXT,
				start_time TEXT NOT NULL,
				end_time TEXT NOT NULL,
				member_name TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot ON bookings(boat_id, booking_date, start_time)`,
			`CREATE INDEX IF NOT EXISTS idx_bookings_club_date ON bookings(club_id, booking_date)`,

			// Scrape jobs - append-only audit trail
			`CREATE TABLE IF NOT EXISTS scrape_jobs (
				id TEXT PRIMARY KEY,
				club_id TEXT NOT NULL REFERENCES clubs(id),
				status TEXT NOT NULL DEFAULT 'running',
				started_at TEXT NOT NULL,
				completed_at TEXT,
				duration_ms INTEGER DEFAULT 0,
				boats_count INTEGER DEFAULT 0,
				bookings_count INTEGER DEFAULT 0,
				error TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_club_started ON scrape_jobs(club_id, started_at)`,
			`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_status ON scrape_jobs(status)`,
		},
	})
}
