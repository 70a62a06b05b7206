package destinations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/api/middleware"
	"github.com/stveit/argus/internal/media"
	"github.com/stveit/argus/internal/models"
	"github.com/stveit/argus/internal/storage"
)

// nopSender satisfies the mail transport without sending anything;
// handler tests never reach Send.
type nopSender struct{}

func (nopSender) SendMail(ctx context.Context, subject, body string, recipients []string) error {
	return nil
}

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

func newTestRegistry() *media.Registry {
	return media.NewRegistry(
		media.NewEmailMedium(nopSender{}),
		media.NewSMSMedium(nopSender{}, "gateway@example.com"),
	)
}

func createTestUser(t *testing.T, store *storage.SQLiteStorage, username string) *models.User {
	t.Helper()
	user := models.NewUser(username, username+"@example.com")
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func asUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreate_SMSNormalized(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	handler := NewHandler(store, newTestRegistry())

	body := `{"media": "sms", "settings": {"phone_number": "+47 47 47 47 00"}}`
	req := asUser(httptest.NewRequest("POST", "/api/v1/destinations", strings.NewReader(body)), user)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp struct {
		Data struct {
			ID       string `json:"id"`
			Media    string `json:"media"`
			Settings struct {
				PhoneNumber string `json:"phone_number"`
			} `json:"settings"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Media != "sms" || resp.Data.Settings.PhoneNumber != "+4747474700" {
		t.Errorf("destination = %+v", resp.Data)
	}
}

func TestCreate_DuplicateConflicts(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	handler := NewHandler(store, newTestRegistry())

	body := `{"media": "sms", "settings": {"phone_number": "+4747474700"}}`
	req := asUser(httptest.NewRequest("POST", "/api/v1/destinations", strings.NewReader(body)), user)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d; body: %s", rec.Code, rec.Body.String())
	}

	// Same number in unnormalized form is still the same destination.
	body = `{"media": "sms", "settings": {"phone_number": "+47 47 47 47 00"}}`
	req = asUser(httptest.NewRequest("POST", "/api/v1/destinations", strings.NewReader(body)), user)
	rec = httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want %d; body: %s", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestCreate_UnknownMedia(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	handler := NewHandler(store, newTestRegistry())

	body := `{"media": "carrier-pigeon", "settings": {}}`
	req := asUser(httptest.NewRequest("POST", "/api/v1/destinations", strings.NewReader(body)), user)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
}

func TestUpdate_SyncedDestinationRejected(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")

	synced := models.NewDestinationConfig(user.ID, &models.EmailSettings{
		EmailAddress: user.Email,
		Synced:       true,
	})
	if err := store.Destinations().Create(context.Background(), synced); err != nil {
		t.Fatalf("create destination: %v", err)
	}

	handler := NewHandler(store, newTestRegistry())
	body := `{"settings": {"email_address": "other@example.com"}}`
	req := asUser(httptest.NewRequest("PUT", "/api/v1/destinations/"+synced.ID, strings.NewReader(body)), user)
	req = withURLParam(req, "id", synced.ID)
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
}

func TestDelete_SyncedDestinationRejected(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")

	synced := models.NewDestinationConfig(user.ID, &models.EmailSettings{
		EmailAddress: user.Email,
		Synced:       true,
	})
	if err := store.Destinations().Create(context.Background(), synced); err != nil {
		t.Fatalf("create destination: %v", err)
	}

	handler := NewHandler(store, newTestRegistry())
	req := asUser(httptest.NewRequest("DELETE", "/api/v1/destinations/"+synced.ID, nil), user)
	req = withURLParam(req, "id", synced.ID)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
	if _, err := store.Destinations().GetByID(context.Background(), synced.ID); err != nil {
		t.Errorf("synced destination gone after rejected delete: %v", err)
	}
}

func TestDelete_ReferencedDestinationAllowed(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	ctx := context.Background()

	slot := models.NewTimeslot(user.ID, "always")
	slot.Recurrences = []models.TimeRecurrence{
		{Days: models.AllDays(), Start: models.DayStart, End: models.DayEnd},
	}
	if err := store.Timeslots().Create(ctx, slot); err != nil {
		t.Fatalf("create timeslot: %v", err)
	}
	destination := models.NewDestinationConfig(user.ID, &models.SMSSettings{PhoneNumber: "+4747474700"})
	if err := store.Destinations().Create(ctx, destination); err != nil {
		t.Fatalf("create destination: %v", err)
	}
	profile := models.NewNotificationProfile(user.ID, slot.ID)
	profile.DestinationIDs = []string{destination.ID}
	if err := store.Profiles().Create(ctx, profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	handler := NewHandler(store, newTestRegistry())
	req := asUser(httptest.NewRequest("DELETE", "/api/v1/destinations/"+destination.ID, nil), user)
	req = withURLParam(req, "id", destination.ID)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	// The profile survives, just without that channel.
	got, err := store.Profiles().Destinations(ctx, profile.ID)
	if err != nil {
		t.Fatalf("load profile destinations: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("profile still has %d destinations", len(got))
	}
}

func TestMediaCatalog(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	handler := NewHandler(store, newTestRegistry())

	req := asUser(httptest.NewRequest("GET", "/api/v1/media", nil), user)
	rec := httptest.NewRecorder()

	handler.Media(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Data []models.Media `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].Slug != "email" || resp.Data[1].Slug != "sms" {
		t.Errorf("catalog = %+v", resp.Data)
	}
}
