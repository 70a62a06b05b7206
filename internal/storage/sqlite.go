package storage

import (
	"context"
	"database/sql"
	"fmt"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	path string
	db   *sql.DB

	users        *sqliteUserRepo
	timeslots    *sqliteTimeslotRepo
	filters      *sqliteFilterRepo
	destinations *sqliteDestinationRepo
	profiles     *sqliteProfileRepo
	incidents    *sqliteIncidentRepo
}

// NewSQLiteStorage creates a new SQLite storage.
func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStorage) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", s.path))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	// Enable foreign keys and WAL mode
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db

	// Initialize repositories
	s.users = &sqliteUserRepo{db: db}
	s.timeslots = &sqliteTimeslotRepo{db: db}
	s.filters = &sqliteFilterRepo{db: db}
	s.destinations = &sqliteDestinationRepo{db: db}
	s.profiles = &sqliteProfileRepo{db: db}
	s.incidents = &sqliteIncidentRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate() error {
	return runMigrations(s.db)
}

// Users returns the user repository.
func (s *SQLiteStorage) Users() UserRepository {
	return s.users
}

// Timeslots returns the timeslot repository.
func (s *SQLiteStorage) Timeslots() TimeslotRepository {
	return s.timeslots
}

// Filters returns the filter repository.
func (s *SQLiteStorage) Filters() FilterRepository {
	return s.filters
}

// Destinations returns the destination repository.
func (s *SQLiteStorage) Destinations() DestinationRepository {
	return s.destinations
}

// Profiles returns the notification profile repository.
func (s *SQLiteStorage) Profiles() ProfileRepository {
	return s.profiles
}

// Incidents returns the incident repository.
func (s *SQLiteStorage) Incidents() IncidentRepository {
	return s.incidents
}
