// Package account implements the user-lifecycle side effects of the
// notification system: the default timeslot and synced email destination
// created with a user, and the login-time sync that keeps the synced
// destination aligned with the user's profile email. The external
// user-lifecycle collaborator calls these operations explicitly; there
// is no implicit event bus.
package account

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

// DefaultTimeslotName is the name of the timeslot created for new users.
// It covers every weekday, all day.
const DefaultTimeslotName = "All the time"

// Options toggles the per-user bootstrap side effects.
type Options struct {
	// CreateDefaultTimeslot controls whether new users get the
	// "All the time" timeslot.
	CreateDefaultTimeslot bool
	// CreateDefaultDestination controls whether new users get a synced
	// email destination.
	CreateDefaultDestination bool
}

// DefaultOptions enables both bootstrap side effects.
func DefaultOptions() Options {
	return Options{
		CreateDefaultTimeslot:    true,
		CreateDefaultDestination: true,
	}
}

// Service performs user-lifecycle operations against storage.
type Service struct {
	store storage.Storage
	opts  Options

	// userLocks serializes synced-destination mutation per user, so two
	// concurrent login-triggered syncs cannot race. All other entities
	// are immutable once validated.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewService creates an account service.
func NewService(store storage.Storage, opts Options) *Service {
	return &Service{
		store:     store,
		opts:      opts,
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// BootstrapUser runs the on-creation side effects for a new user:
// a default all-week timeslot and a synced email destination. Both are
// skipped when the user already has any timeslot or destination.
func (s *Service) BootstrapUser(ctx context.Context, user *models.User) error {
	if s.opts.CreateDefaultTimeslot {
		if err := s.createDefaultTimeslot(ctx, user); err != nil {
			return err
		}
	}
	if s.opts.CreateDefaultDestination {
		if err := s.createDefaultDestination(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) createDefaultTimeslot(ctx context.Context, user *models.User) error {
	count, err := s.store.Timeslots().CountByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	slot := models.NewTimeslot(user.ID, DefaultTimeslotName)
	slot.Recurrences = []models.TimeRecurrence{
		{
			Days:  models.AllDays(),
			Start: models.DayStart,
			End:   models.DayEnd,
		},
	}
	if err := s.store.Timeslots().Create(ctx, slot); err != nil {
		return fmt.Errorf("create default timeslot: %w", err)
	}
	return nil
}

func (s *Service) createDefaultDestination(ctx context.Context, user *models.User) error {
	count, err := s.store.Destinations().CountByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if count > 0 || user.Email == "" {
		return nil
	}

	destination := models.NewDestinationConfig(user.ID, &models.EmailSettings{
		EmailAddress: user.Email,
		Synced:       true,
	})
	if err := s.store.Destinations().Create(ctx, destination); err != nil {
		return fmt.Errorf("create default destination: %w", err)
	}
	return nil
}

// SyncEmailDestination is the login hook keeping the synced email
// destination aligned with the user's profile email: deleted when the
// email became empty, updated when it changed, created when missing.
// Calls are serialized per user.
func (s *Service) SyncEmailDestination(ctx context.Context, user *models.User) error {
	lock := s.userLock(user.ID)
	lock.Lock()
	defer lock.Unlock()

	destinations, err := s.store.Destinations().ListByUser(ctx, user.ID)
	if err != nil {
		return err
	}

	for _, destination := range destinations {
		settings := destination.EmailSettings()
		if settings == nil || !settings.Synced {
			continue
		}

		if user.Email == "" {
			if err := s.store.Destinations().Delete(ctx, destination.ID); err != nil {
				return fmt.Errorf("delete synced destination: %w", err)
			}
			log.Printf("account: deleted synced email destination for user %s", user.ID)
			return nil
		}
		if settings.EmailAddress != user.Email {
			settings.EmailAddress = user.Email
			destination.UpdatedAt = time.Now()
			if err := s.store.Destinations().Update(ctx, destination); err != nil {
				return fmt.Errorf("update synced destination: %w", err)
			}
		}
		return nil
	}

	// No synced destination; recreate it when the user has an email.
	if user.Email == "" {
		return nil
	}
	destination := models.NewDestinationConfig(user.ID, &models.EmailSettings{
		EmailAddress: user.Email,
		Synced:       true,
	})
	if err := s.store.Destinations().Create(ctx, destination); err != nil {
		return fmt.Errorf("recreate synced destination: %w", err)
	}
	return nil
}
