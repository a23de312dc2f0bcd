package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/foodsafety/internal/cache"
	"github.com/geocoder89/foodsafety/internal/config"
	"github.com/geocoder89/foodsafety/internal/db"
	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
	apphttp "github.com/geocoder89/foodsafety/internal/http"
	"github.com/geocoder89/foodsafety/internal/media"
	"github.com/geocoder89/foodsafety/internal/notifications"
	"github.com/geocoder89/foodsafety/internal/observability"
	"github.com/geocoder89/foodsafety/internal/repo/memory"
	"github.com/geocoder89/foodsafety/internal/security"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	mu          sync.Mutex
	invitations []notifications.InvitationInput
	otps        []notifications.PasswordResetInput
}

func (o *outbox) SendInvitation(_ context.Context, in notifications.InvitationInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invitations = append(o.invitations, in)
	return nil
}

func (o *outbox) SendPasswordResetOTP(_ context.Context, in notifications.PasswordResetInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.otps = append(o.otps, in)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Env:                   "test",
		AppName:               "FoodSafety",
		AppDescription:        "restaurant directory",
		JWTSecret:             "test-secret-key",
		AccessTokenTTLMinutes: 60,
		InvitationTTLMinutes:  2880,
		OTPTTLMinutes:         5,
		SuperAdminEmail:       "root@example.com",
		SuperAdminPassword:    "root-pass",
		SuperAdminName:        "Root Admin",
		MaxUploadBytes:        1 << 20,
		ActivationURL:         "http://localhost:3000/login/business",
		AllowedOrigins:        []string{"*"},
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *outbox) {
	t.Helper()
	return setupRouterWithLogger(t, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func setupRouterWithLogger(t *testing.T, logger *slog.Logger) (*gin.Engine, *outbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()

	users := memory.NewUsersRepo()
	hasher := security.NewHasher(bcrypt.MinCost)
	if _, err := db.EnsureSuperAdmin(context.Background(), users, hasher, cfg); err != nil {
		t.Fatalf("seed super admin: %v", err)
	}

	src := memory.NewLookupsRepo(restaurant.DefaultDistricts, restaurant.DefaultCircles, restaurant.DefaultTypes)
	store, err := media.NewLocalStore(t.TempDir(), "/static")
	if err != nil {
		t.Fatalf("media store: %v", err)
	}

	box := &outbox{}
	router := apphttp.NewRouter(logger, apphttp.Deps{
		Config:      cfg,
		Users:       users,
		Restaurants: memory.NewRestaurantsRepo(),
		Lookups:     cache.NewLookups(src, cache.NewMemory(), time.Minute, logger),
		Media:       store,
		Notifier:    box,
		Hasher:      hasher,
		StaticDir:   store.Dir(),
	})

	return router, box
}

// helpers

func call(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, email, password string) (token, role string) {
	t.Helper()

	w := call(t, r, http.MethodPost, "/business/login", "", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d body=%s", email, w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return resp.AccessToken, resp.Role
}

// activationParts pulls user id and code off ".../login/business/<id>/<code>".
func activationParts(t *testing.T, link string) (string, string) {
	t.Helper()

	parts := strings.Split(strings.TrimRight(link, "/"), "/")
	if len(parts) < 2 {
		t.Fatalf("unexpected activation link %q", link)
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

func TestInviteActivateAndManageRestaurants(t *testing.T) {
	r, box := setupRouter(t)

	rootToken, role := login(t, r, "root@example.com", "root-pass")
	if role != "super_admin" {
		t.Fatalf("expected super_admin, got %q", role)
	}

	// invite
	w := call(t, r, http.MethodPost, "/business/users", rootToken, map[string]string{
		"firstname": "Bob",
		"email":     "bob@x.com",
		"role":      "admin",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("invite: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	if len(box.invitations) != 1 {
		t.Fatalf("expected one invitation, got %d", len(box.invitations))
	}
	userID, code := activationParts(t, box.invitations[0].Link)

	// listing shows the pending invite
	w = call(t, r, http.MethodGet, "/business/users?query=bob", rootToken, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"logged_in":"Invited"`) {
		t.Fatalf("list users: got %d body=%s", w.Code, w.Body.String())
	}

	// confirm + activate, exactly once
	w = call(t, r, http.MethodGet, "/business/confirm-email/"+userID+"/"+code, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", w.Code)
	}

	activate := map[string]string{"user_id": userID, "code": code, "name": "Bob Mathew", "password": "bob-pass"}
	if w = call(t, r, http.MethodPost, "/business/set-password", "", activate); w.Code != http.StatusOK {
		t.Fatalf("set-password: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if w = call(t, r, http.MethodPost, "/business/set-password", "", activate); w.Code != http.StatusUnauthorized {
		t.Fatalf("second activation: expected 401, got %d", w.Code)
	}

	bobToken, role := login(t, r, "bob@x.com", "bob-pass")
	if role != "admin" {
		t.Fatalf("expected admin, got %q", role)
	}

	// super admin holds no restaurant permissions
	w = call(t, r, http.MethodGet, "/business/restaurants", rootToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("super admin listing: expected 403, got %d", w.Code)
	}
	// and bob holds no user permissions
	w = call(t, r, http.MethodGet, "/business/users", bobToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("admin user listing: expected 403, got %d", w.Code)
	}

	// create two restaurants
	var ids []string
	for _, body := range []map[string]any{
		{"name": "Ammas Bakery", "district": "Trivandrum", "type": "bakery", "rating": 4},
		{"name": "Fresh Juice", "district": "kollam", "type": "juicery", "rating": 3},
	} {
		w = call(t, r, http.MethodPost, "/business/restaurants", bobToken, body)
		if w.Code != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d body=%s", w.Code, w.Body.String())
		}
		var created struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &created)
		ids = append(ids, created.ID)
	}

	// public filter
	w = call(t, r, http.MethodGet, "/restaurants?restaurant_type=bakery&district=TRIVANDRUM", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public list: expected 200, got %d", w.Code)
	}
	var items []restaurant.ListItem
	_ = json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 || items[0].ID != ids[0] || items[0].CreatedBy != "Bob Mathew" {
		t.Fatalf("unexpected public listing: %+v", items)
	}

	// soft delete hides it everywhere
	if w = call(t, r, http.MethodDelete, "/business/restaurants/"+ids[0], bobToken, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	w = call(t, r, http.MethodGet, "/restaurants?restaurant_type=bakery", "", nil)
	items = nil
	_ = json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 0 {
		t.Fatalf("deleted restaurant still listed: %+v", items)
	}
	if w = call(t, r, http.MethodGet, "/restaurants/"+ids[0], "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted detail: expected 404, got %d", w.Code)
	}

	// root deletes bob; bob's token stops working
	if w = call(t, r, http.MethodDelete, "/business/users/"+userID, rootToken, nil); w.Code != http.StatusOK {
		t.Fatalf("delete user: expected 200, got %d", w.Code)
	}
	if w = call(t, r, http.MethodGet, "/business/restaurants", bobToken, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user token: expected 401, got %d", w.Code)
	}
}

func TestRegistrationPasswordFlows(t *testing.T) {
	r, box := setupRouter(t)

	w := call(t, r, http.MethodPost, "/business/complete_registration", "", map[string]string{
		"name": "Alice", "email": "alice@x.com", "phone": "+91 9000000000", "password": "alice-pass",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	token, role := login(t, r, "alice@x.com", "alice-pass")
	if role != "admin" {
		t.Fatalf("self-registered accounts are admins, got %q", role)
	}

	w = call(t, r, http.MethodPost, "/business/change_password", token, map[string]string{
		"current_password": "alice-pass", "new_password": "alice-pass",
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Current password and new passwords cannot be same") {
		t.Fatalf("same password: got %d body=%s", w.Code, w.Body.String())
	}

	// OTP reset
	if w = call(t, r, http.MethodPost, "/business/forgot_password", "", map[string]string{"email": "alice@x.com"}); w.Code != http.StatusOK {
		t.Fatalf("forgot: expected 200, got %d", w.Code)
	}
	if len(box.otps) != 1 {
		t.Fatalf("expected one otp, got %d", len(box.otps))
	}
	reset := map[string]string{"email": "alice@x.com", "otp": box.otps[0].OTP, "new_password": "fresh-pass"}
	if w = call(t, r, http.MethodPost, "/business/reset_password", "", reset); w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if w = call(t, r, http.MethodPost, "/business/reset_password", "", reset); w.Code == http.StatusOK {
		t.Fatalf("otp must be single use")
	}

	login(t, r, "alice@x.com", "fresh-pass")

	// oauth2 form flow
	form := url.Values{"username": {"alice@x.com"}, "password": {"fresh-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/business/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"token_type":"bearer"`) {
		t.Fatalf("token: got %d body=%s", w.Code, w.Body.String())
	}

	// JSON routes reject other content types
	req = httptest.NewRequest(http.MethodPost, "/business/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}
}

func TestPublicLookupsAndOps(t *testing.T) {
	r, _ := setupRouter(t)

	for _, path := range []string{"/district", "/district/circles", "/restaurants/restaurant_type", "/healthz", "/readyz"} {
		if w := call(t, r, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}

	if w := call(t, r, http.MethodGet, "/business/district", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("admin lookups need a token, got %d", w.Code)
	}

	w := call(t, r, http.MethodGet, "/docs", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Security-Policy"), "unpkg.com") {
		t.Fatalf("docs: got %d csp=%q", w.Code, w.Header().Get("Content-Security-Policy"))
	}
	w = call(t, r, http.MethodGet, "/docs/openapi.yaml", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/business/set-password:") {
		t.Fatalf("openapi: got %d", w.Code)
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.HasPrefix(csp, "default-src 'none'; frame-ancestors") {
		t.Fatalf("api responses keep the locked-down policy, got %q", csp)
	}

	w = call(t, r, http.MethodGet, "/nowhere", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"status":false`) {
		t.Fatalf("unknown route: got %d body=%s", w.Code, w.Body.String())
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) lines() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		var rec map[string]any
		if json.Unmarshal([]byte(line), &rec) == nil {
			out = append(out, rec)
		}
	}
	return out
}

func TestServiceLogsCarryRequestID(t *testing.T) {
	logs := &lockedBuffer{}
	logger := slog.New(observability.NewTraceHandler(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	r, _ := setupRouterWithLogger(t, logger)

	body, _ := json.Marshal(map[string]string{
		"name":     "Anu Varghese",
		"email":    "anu@example.com",
		"phone":    "+91 9000000001",
		"password": "anu-pass-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/business/complete_registration", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "req-registration-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	var found bool
	for _, rec := range logs.lines() {
		if rec["msg"] != "account registered" {
			continue
		}
		found = true
		if rec["request_id"] != "req-registration-1" {
			t.Fatalf("service log line lacks request id: %v", rec)
		}
	}
	if !found {
		t.Fatalf("no service log line for the registration; logs=%v", logs.lines())
	}
}
