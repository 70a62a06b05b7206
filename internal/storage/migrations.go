package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Users table
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT UNIQUE NOT NULL,
				email TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Timeslots table (name unique per user)
			CREATE TABLE IF NOT EXISTS timeslots (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (user_id, name),
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Time recurrences (weekly windows of a timeslot)
			CREATE TABLE IF NOT EXISTS time_recurrences (
				id TEXT PRIMARY KEY,
				timeslot_id TEXT NOT NULL,
				days_json TEXT NOT NULL,
				start_ns INTEGER NOT NULL,
				end_ns INTEGER NOT NULL,
				FOREIGN KEY (timeslot_id) REFERENCES timeslots(id) ON DELETE CASCADE
			);

			-- Filters table (name unique per user)
			CREATE TABLE IF NOT EXISTS filters (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				expr_json TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (user_id, name),
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Destination configs (media-specific settings payload)
			CREATE TABLE IF NOT EXISTS destinations (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				media_slug TEXT NOT NULL,
				settings_json TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);

			-- Notification profiles (one per timeslot)
			CREATE TABLE IF NOT EXISTS notification_profiles (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				timeslot_id TEXT UNIQUE NOT NULL,
				active INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
				FOREIGN KEY (timeslot_id) REFERENCES timeslots(id) ON DELETE CASCADE
			);

			-- Profile-Filter junction table (many-to-many).
			-- filter_id deliberately has no cascade: filter deletion is
			-- guarded at the application boundary.
			CREATE TABLE IF NOT EXISTS profile_filters (
				profile_id TEXT NOT NULL,
				filter_id TEXT NOT NULL,
				PRIMARY KEY (profile_id, filter_id),
				FOREIGN KEY (profile_id) REFERENCES notification_profiles(id) ON DELETE CASCADE,
				FOREIGN KEY (filter_id) REFERENCES filters(id)
			);

			-- Profile-Destination junction table (many-to-many)
			CREATE TABLE IF NOT EXISTS profile_destinations (
				profile_id TEXT NOT NULL,
				destination_id TEXT NOT NULL,
				PRIMARY KEY (profile_id, destination_id),
				FOREIGN KEY (profile_id) REFERENCES notification_profiles(id) ON DELETE CASCADE,
				FOREIGN KEY (destination_id) REFERENCES destinations(id) ON DELETE CASCADE
			);

			-- Incidents received from external sources
			CREATE TABLE IF NOT EXISTS incidents (
				id TEXT PRIMARY KEY,
				description TEXT NOT NULL,
				source_system_id TEXT NOT NULL,
				tags_json TEXT NOT NULL,
				start_time DATETIME NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_timeslots_user ON timeslots(user_id);
			CREATE INDEX IF NOT EXISTS idx_recurrences_timeslot ON time_recurrences(timeslot_id);
			CREATE INDEX IF NOT EXISTS idx_filters_user ON filters(user_id);
			CREATE INDEX IF NOT EXISTS idx_destinations_user ON destinations(user_id);
			CREATE INDEX IF NOT EXISTS idx_profiles_user ON notification_profiles(user_id);
			CREATE INDEX IF NOT EXISTS idx_incidents_source ON incidents(source_system_id);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
