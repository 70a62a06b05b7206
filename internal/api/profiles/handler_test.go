package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/stveit/argus/internal/api/middleware"
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

func createTestUser(t *testing.T, store *storage.SQLiteStorage, username string) *models.User {
	t.Helper()
	user := models.NewUser(username, username+"@example.com")
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTestTimeslot(t *testing.T, store *storage.SQLiteStorage, userID, name string) *models.Timeslot {
	t.Helper()
	slot := models.NewTimeslot(userID, name)
	slot.Recurrences = []models.TimeRecurrence{
		{Days: models.AllDays(), Start: models.DayStart, End: models.DayEnd},
	}
	if err := store.Timeslots().Create(context.Background(), slot); err != nil {
		t.Fatalf("create timeslot: %v", err)
	}
	return slot
}

func asUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreate_Success(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	slot := createTestTimeslot(t, store, user.ID, "always")

	destination := models.NewDestinationConfig(user.ID, &models.SMSSettings{PhoneNumber: "+4747474700"})
	if err := store.Destinations().Create(context.Background(), destination); err != nil {
		t.Fatalf("create destination: %v", err)
	}

	handler := NewHandler(store)
	body := fmt.Sprintf(`{"timeslot": %q, "destinations": [%q]}`, slot.ID, destination.ID)
	req := asUser(httptest.NewRequest("POST", "/api/v1/notificationprofiles", strings.NewReader(body)), user)
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp struct {
		Data *ProfileResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Timeslot != slot.ID || !resp.Data.Active {
		t.Errorf("profile = %+v", resp.Data)
	}
	if len(resp.Data.Filters) != 0 {
		t.Errorf("filters should encode as empty array, got %v", resp.Data.Filters)
	}
}

func TestCreate_UnknownReferences(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	aliceSlot := createTestTimeslot(t, store, alice.ID, "always")
	bobSlot := createTestTimeslot(t, store, bob.ID, "always")

	bobFilter := models.NewFilter(bob.ID, "prod", models.FilterExpr{})
	if err := store.Filters().Create(context.Background(), bobFilter); err != nil {
		t.Fatalf("create filter: %v", err)
	}

	handler := NewHandler(store)
	tests := []struct {
		name string
		body string
	}{
		{"missing timeslot", `{"destinations": []}`},
		{"unknown timeslot", `{"timeslot": "nonexistent"}`},
		{"other user's timeslot", fmt.Sprintf(`{"timeslot": %q}`, bobSlot.ID)},
		{"unknown filter", fmt.Sprintf(`{"timeslot": %q, "filters": ["nonexistent"]}`, aliceSlot.ID)},
		{"other user's filter", fmt.Sprintf(`{"timeslot": %q, "filters": [%q]}`, aliceSlot.ID, bobFilter.ID)},
		{"unknown destination", fmt.Sprintf(`{"timeslot": %q, "destinations": ["nonexistent"]}`, aliceSlot.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := asUser(httptest.NewRequest("POST", "/api/v1/notificationprofiles", strings.NewReader(tt.body)), alice)
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
			}
		})
	}
}

func TestCreate_SecondProfileOnTimeslot(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	slot := createTestTimeslot(t, store, user.ID, "always")
	handler := NewHandler(store)

	body := fmt.Sprintf(`{"timeslot": %q}`, slot.ID)
	req := asUser(httptest.NewRequest("POST", "/api/v1/notificationprofiles", strings.NewReader(body)), user)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d; body: %s", rec.Code, rec.Body.String())
	}

	req = asUser(httptest.NewRequest("POST", "/api/v1/notificationprofiles", strings.NewReader(body)), user)
	rec = httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("second create status = %d, want %d; body: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
}

func TestUpdate_RebindKeepsID(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	slotA := createTestTimeslot(t, store, user.ID, "weekdays")
	slotB := createTestTimeslot(t, store, user.ID, "weekends")

	profile := models.NewNotificationProfile(user.ID, slotA.ID)
	if err := store.Profiles().Create(context.Background(), profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	handler := NewHandler(store)
	body := fmt.Sprintf(`{"timeslot": %q, "active": false}`, slotB.ID)
	req := asUser(httptest.NewRequest("PUT", "/api/v1/notificationprofiles/"+profile.ID, strings.NewReader(body)), user)
	req = withURLParam(req, "id", profile.ID)
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Data *ProfileResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.ID != profile.ID {
		t.Errorf("id changed on rebind: %q -> %q", profile.ID, resp.Data.ID)
	}
	if resp.Data.Timeslot != slotB.ID || resp.Data.Active {
		t.Errorf("profile = %+v", resp.Data)
	}
}

func TestGetByID_OtherUsersProfileHidden(t *testing.T) {
	store := newTestStorage(t)
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	slot := createTestTimeslot(t, store, bob.ID, "always")
	profile := models.NewNotificationProfile(bob.ID, slot.ID)
	if err := store.Profiles().Create(context.Background(), profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	handler := NewHandler(store)
	req := asUser(httptest.NewRequest("GET", "/api/v1/notificationprofiles/"+profile.ID, nil), alice)
	req = withURLParam(req, "id", profile.ID)
	rec := httptest.NewRecorder()

	handler.GetByID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDelete_Success(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "alice")
	slot := createTestTimeslot(t, store, user.ID, "always")
	profile := models.NewNotificationProfile(user.ID, slot.ID)
	if err := store.Profiles().Create(context.Background(), profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	handler := NewHandler(store)
	req := asUser(httptest.NewRequest("DELETE", "/api/v1/notificationprofiles/"+profile.ID, nil), user)
	req = withURLParam(req, "id", profile.ID)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, err := store.Profiles().GetByID(context.Background(), profile.ID); err == nil {
		t.Error("profile still loadable after delete")
	}
}
