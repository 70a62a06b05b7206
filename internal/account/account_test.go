package account

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func createUser(t *testing.T, store *storage.SQLiteStorage, email string) *models.User {
	t.Helper()
	user := models.NewUser("alice", email)
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func syncedDestination(t *testing.T, store *storage.SQLiteStorage, userID string) *models.DestinationConfig {
	t.Helper()
	destinations, err := store.Destinations().ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list destinations: %v", err)
	}
	for _, d := range destinations {
		if s := d.EmailSettings(); s != nil && s.Synced {
			return d
		}
	}
	return nil
}

func TestBootstrapUser(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createUser(t, store, "alice@example.com")

	service := NewService(store, DefaultOptions())
	if err := service.BootstrapUser(ctx, user); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	slots, err := store.Timeslots().ListByUser(ctx, user.ID)
	if err != nil || len(slots) != 1 {
		t.Fatalf("timeslots = %v, %v; want exactly one", slots, err)
	}
	if slots[0].Name != DefaultTimeslotName {
		t.Errorf("timeslot name = %q", slots[0].Name)
	}
	if len(slots[0].Recurrences) != 1 || !slots[0].Recurrences[0].AllDay() || len(slots[0].Recurrences[0].Days) != 7 {
		t.Errorf("default recurrence = %+v, want all week all day", slots[0].Recurrences)
	}

	destination := syncedDestination(t, store, user.ID)
	if destination == nil {
		t.Fatal("no synced email destination created")
	}
	if destination.EmailSettings().EmailAddress != "alice@example.com" {
		t.Errorf("synced address = %q", destination.EmailSettings().EmailAddress)
	}

	// Running bootstrap again must not duplicate anything.
	if err := service.BootstrapUser(ctx, user); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	slots, _ = store.Timeslots().ListByUser(ctx, user.ID)
	count, _ := store.Destinations().CountByUser(ctx, user.ID)
	if len(slots) != 1 || count != 1 {
		t.Errorf("after rerun: %d timeslots, %d destinations; want 1 each", len(slots), count)
	}
}

func TestBootstrapUserToggles(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createUser(t, store, "alice@example.com")

	service := NewService(store, Options{})
	if err := service.BootstrapUser(ctx, user); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	slots, _ := store.Timeslots().ListByUser(ctx, user.ID)
	count, _ := store.Destinations().CountByUser(ctx, user.ID)
	if len(slots) != 0 || count != 0 {
		t.Errorf("disabled bootstrap created %d timeslots, %d destinations", len(slots), count)
	}
}

func TestBootstrapUserWithoutEmail(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createUser(t, store, "")

	service := NewService(store, DefaultOptions())
	if err := service.BootstrapUser(ctx, user); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if count, _ := store.Destinations().CountByUser(ctx, user.ID); count != 0 {
		t.Errorf("destinations = %d, want 0 for user without email", count)
	}
}

func TestSyncEmailDestination(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createUser(t, store, "a@example.com")

	service := NewService(store, DefaultOptions())
	if err := service.BootstrapUser(ctx, user); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// Email changed: the synced destination follows, keeping its row.
	original := syncedDestination(t, store, user.ID)
	user.Email = "b@example.com"
	if err := service.SyncEmailDestination(ctx, user); err != nil {
		t.Fatalf("sync after change: %v", err)
	}
	updated := syncedDestination(t, store, user.ID)
	if updated == nil || updated.ID != original.ID {
		t.Fatalf("synced destination replaced instead of updated")
	}
	if updated.EmailSettings().EmailAddress != "b@example.com" {
		t.Errorf("address = %q after sync", updated.EmailSettings().EmailAddress)
	}

	// Email cleared: the synced destination is removed.
	user.Email = ""
	if err := service.SyncEmailDestination(ctx, user); err != nil {
		t.Fatalf("sync after clear: %v", err)
	}
	if syncedDestination(t, store, user.ID) != nil {
		t.Fatal("synced destination survived an empty email")
	}

	// Email set again: the destination comes back.
	user.Email = "c@example.com"
	if err := service.SyncEmailDestination(ctx, user); err != nil {
		t.Fatalf("sync after restore: %v", err)
	}
	restored := syncedDestination(t, store, user.ID)
	if restored == nil || restored.EmailSettings().EmailAddress != "c@example.com" {
		t.Fatalf("synced destination not recreated: %+v", restored)
	}
}

func TestSyncLeavesManualDestinationsAlone(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createUser(t, store, "a@example.com")

	manual := models.NewDestinationConfig(user.ID, &models.EmailSettings{EmailAddress: "work@example.com"})
	if err := store.Destinations().Create(ctx, manual); err != nil {
		t.Fatalf("create destination: %v", err)
	}
	sms := models.NewDestinationConfig(user.ID, &models.SMSSettings{PhoneNumber: "+4747474700"})
	if err := store.Destinations().Create(ctx, sms); err != nil {
		t.Fatalf("create destination: %v", err)
	}

	service := NewService(store, DefaultOptions())
	user.Email = ""
	if err := service.SyncEmailDestination(ctx, user); err != nil {
		t.Fatalf("sync: %v", err)
	}

	destinations, err := store.Destinations().ListByUser(ctx, user.ID)
	if err != nil || len(destinations) != 2 {
		t.Fatalf("destinations = %d, %v; manual ones must survive", len(destinations), err)
	}
}
