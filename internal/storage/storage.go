// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"

	"github.com/stveit/argus/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Users() UserRepository
	Timeslots() TimeslotRepository
	Filters() FilterRepository
	Destinations() DestinationRepository
	Profiles() ProfileRepository
	Incidents() IncidentRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
}

// TimeslotRepository defines operations for timeslots and their
// recurrences. Create and Update replace the recurrence set atomically.
type TimeslotRepository interface {
	Create(ctx context.Context, slot *models.Timeslot) error
	GetByID(ctx context.Context, id string) (*models.Timeslot, error)
	GetByName(ctx context.Context, userID, name string) (*models.Timeslot, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Timeslot, error)
	Update(ctx context.Context, slot *models.Timeslot) error
	// Delete removes the timeslot; recurrences and the referencing
	// notification profile go with it.
	Delete(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// FilterRepository defines operations for filters.
type FilterRepository interface {
	Create(ctx context.Context, filter *models.Filter) error
	GetByID(ctx context.Context, id string) (*models.Filter, error)
	GetByName(ctx context.Context, userID, name string) (*models.Filter, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Filter, error)
	Update(ctx context.Context, filter *models.Filter) error
	// Delete fails with a ReferentialConflictError while any
	// notification profile references the filter.
	Delete(ctx context.Context, id string) error
	// IsReferenced reports whether any profile references the filter.
	IsReferenced(ctx context.Context, id string) (bool, error)
}

// DestinationRepository defines operations for destination configs.
type DestinationRepository interface {
	Create(ctx context.Context, destination *models.DestinationConfig) error
	GetByID(ctx context.Context, id string) (*models.DestinationConfig, error)
	ListByUser(ctx context.Context, userID string) ([]*models.DestinationConfig, error)
	Update(ctx context.Context, destination *models.DestinationConfig) error
	// Delete removes the destination; profile association rows cascade.
	Delete(ctx context.Context, id string) error
	// IsReferenced reports whether any profile references the destination.
	IsReferenced(ctx context.Context, id string) (bool, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// ProfileRepository defines operations for notification profiles.
// Create persists the profile and its filter/destination associations in
// one transaction.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.NotificationProfile) error
	GetByID(ctx context.Context, id string) (*models.NotificationProfile, error)
	GetByTimeslot(ctx context.Context, timeslotID string) (*models.NotificationProfile, error)
	ListByUser(ctx context.Context, userID string) ([]*models.NotificationProfile, error)
	// ListAll returns every profile across all users with associations
	// loaded. Dispatch does no pre-filtering beyond the matcher.
	ListAll(ctx context.Context) ([]*models.NotificationProfile, error)
	Update(ctx context.Context, profile *models.NotificationProfile) error
	Delete(ctx context.Context, id string) error
	// Destinations resolves the profile's destination configs.
	Destinations(ctx context.Context, profileID string) ([]*models.DestinationConfig, error)
	// Filters resolves the profile's filters.
	Filters(ctx context.Context, profileID string) ([]*models.Filter, error)
}

// IncidentRepository defines operations for incidents. Incidents are
// produced by external sources and consumed read-only by the core; they
// are stored so filter previews can run against real incident pools.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	List(ctx context.Context, limit int) ([]*models.Incident, error)
}
