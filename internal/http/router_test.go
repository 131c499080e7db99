package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/apextrades/internal/account"
	"github.com/geocoder89/apextrades/internal/auth"
	"github.com/geocoder89/apextrades/internal/cache"
	"github.com/geocoder89/apextrades/internal/config"
	apphttp "github.com/geocoder89/apextrades/internal/http"
	"github.com/geocoder89/apextrades/internal/http/handlers"
	"github.com/geocoder89/apextrades/internal/observability"
	"github.com/geocoder89/apextrades/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		StorageDriver:      "memory",
		JWTSecret:          "test-secret-key",
		TokenTTL:           time.Hour,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		OTELServiceName:    "apextrades-test",
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := testConfig()
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := account.NewService(
		memory.NewUsersRepo(),
		auth.NewManager(cfg.JWTSecret, cfg.TokenTTL),
		account.WithProfileCache(cache.NewMemoryProfiles(time.Minute)),
		account.WithOutcomeRecorder(prom),
		account.WithLogger(logger),
	)

	return apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Accounts: svc,
		Prom:     prom,
		Gatherer: reg,
		Checks: map[string]handlers.Check{
			"db": func(context.Context) error { return nil },
		},
	})
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rdr)
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

type sessionBody struct {
	Token string `json:"token"`
	User  struct {
		ID       string  `json:"id"`
		FullName string  `json:"fullname"`
		Email    string  `json:"email"`
		Plan     string  `json:"plan"`
		Balance  float64 `json:"balance"`
	} `json:"user"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, w.Body.String())
	}
	return out
}

func TestAccountLifecycle(t *testing.T) {
	r := setupRouter(t)

	w := call(t, r, http.MethodPost, "/api/register", "", map[string]string{
		"fullname": "Alice Trader",
		"email":    "alice@example.com",
		"password": "Str0ng!pass",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: got %d: %s", w.Code, w.Body.String())
	}
	reg := decode[sessionBody](t, w)
	if reg.Token == "" || reg.User.Plan != "free" || reg.User.Balance != 0 {
		t.Fatalf("unexpected register body %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("register response must not mention the password: %s", w.Body.String())
	}

	w = call(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "Str0ng!pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d: %s", w.Code, w.Body.String())
	}
	login := decode[sessionBody](t, w)
	if login.User.ID != reg.User.ID {
		t.Fatalf("login id %s != register id %s", login.User.ID, reg.User.ID)
	}

	w = call(t, r, http.MethodGet, "/api/user", login.Token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"plan":"free"`) {
		t.Fatalf("get user: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodPut, "/api/user/plan", login.Token, map[string]string{"plan": "professional"})
	if w.Code != http.StatusOK {
		t.Fatalf("update plan: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodGet, "/api/user", login.Token, nil)
	if !strings.Contains(w.Body.String(), `"plan":"professional"`) {
		t.Fatalf("plan change not visible: %s", w.Body.String())
	}

	w = call(t, r, http.MethodPut, "/api/user", login.Token, map[string]string{"fullname": "Alice Renamed", "phone": "+15550100"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Alice Renamed") {
		t.Fatalf("update user: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodPut, "/api/user/password", login.Token, map[string]string{
		"currentPassword": "Str0ng!pass",
		"newPassword":     "N3w!password",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("change password: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "N3w!password",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login with new password: got %d", w.Code)
	}
}

func TestRegister_DuplicateAndWeak(t *testing.T) {
	r := setupRouter(t)

	body := map[string]string{"fullname": "Bob B", "email": "bob@example.com", "password": "Str0ng!pass"}
	if w := call(t, r, http.MethodPost, "/api/register", "", body); w.Code != http.StatusCreated {
		t.Fatalf("first register: got %d", w.Code)
	}

	body["email"] = "BOB@example.com"
	w := call(t, r, http.MethodPost, "/api/register", "", body)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "email_taken") {
		t.Fatalf("duplicate: got %d: %s", w.Code, w.Body.String())
	}

	for _, pw := range []string{"Ab1!", "abcdefg1!", "Abcdefgh!", "Abcdefgh1"} {
		w := call(t, r, http.MethodPost, "/api/register", "", map[string]string{
			"fullname": "Weak", "email": "weak@example.com", "password": pw,
		})
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "weak_password") {
			t.Fatalf("password %q: got %d: %s", pw, w.Code, w.Body.String())
		}
	}
}

func TestProtectedRoutes_MissingVsInvalidToken(t *testing.T) {
	r := setupRouter(t)

	routes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/user", nil},
		{http.MethodPut, "/api/user", map[string]string{"fullname": "X Y"}},
		{http.MethodPut, "/api/user/password", map[string]string{"currentPassword": "a", "newPassword": "b"}},
		{http.MethodPut, "/api/user/plan", map[string]string{"plan": "starter"}},
	}

	expired := auth.NewManager("test-secret-key", -time.Minute)
	stale, _, err := expired.GenerateAccessToken("u-1", "a@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	foreign, _, _ := auth.NewManager("other-secret", time.Hour).GenerateAccessToken("u-1", "a@example.com")

	for _, rt := range routes {
		if w := call(t, r, rt.method, rt.path, "", rt.body); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: got %d, want 401", rt.method, rt.path, w.Code)
		}
		for _, tok := range []string{"garbage", stale, foreign} {
			if w := call(t, r, rt.method, rt.path, tok, rt.body); w.Code != http.StatusForbidden {
				t.Fatalf("%s %s with bad token: got %d, want 403", rt.method, rt.path, w.Code)
			}
		}
	}
}

func TestTokensAreBoundToTheirUser(t *testing.T) {
	r := setupRouter(t)

	register := func(email string) sessionBody {
		w := call(t, r, http.MethodPost, "/api/register", "", map[string]string{
			"fullname": "User " + email, "email": email, "password": "Str0ng!pass",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("register %s: %d", email, w.Code)
		}
		return decode[sessionBody](t, w)
	}

	a := register("a@example.com")
	b := register("b@example.com")

	w := call(t, r, http.MethodGet, "/api/user", a.Token, nil)
	if !strings.Contains(w.Body.String(), a.User.ID) || strings.Contains(w.Body.String(), b.User.ID) {
		t.Fatalf("token for A returned another user: %s", w.Body.String())
	}

	w = call(t, r, http.MethodPut, "/api/user", a.Token, map[string]string{"email": "b@example.com"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "email_taken") {
		t.Fatalf("email collision: got %d: %s", w.Code, w.Body.String())
	}
}

func TestOperationalEndpoints(t *testing.T) {
	r := setupRouter(t)

	_ = call(t, r, http.MethodPost, "/api/login", "", map[string]string{"email": "ghost@example.com", "password": "x"})

	for _, path := range []string{"/healthz", "/readyz", "/api/plans", "/docs", "/docs/openapi.yaml"} {
		if w := call(t, r, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Fatalf("GET %s: got %d", path, w.Code)
		}
	}

	w := call(t, r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}
	for _, want := range []string{"apextrades_http_requests_total", `apextrades_auth_outcomes_total{op="login",result="invalid_credentials"} 1`} {
		if !strings.Contains(w.Body.String(), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "text/plain")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("non-json body: got %d, want 415", w.Code)
	}
}

func TestPanicDoesNotStopTheServer(t *testing.T) {
	r := setupRouter(t)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	if w := call(t, r, http.MethodGet, "/boom", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("panic: got %d, want 500", w.Code)
	}
	if w := call(t, r, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("server should keep serving after a panic, got %d", w.Code)
	}
}

func TestInputThatBindingLetsThroughIsStillA400(t *testing.T) {
	r := setupRouter(t)

	// 72 characters but 140 bytes, over the bcrypt limit
	long := "Aa1!" + strings.Repeat("é", 68)

	w := call(t, r, http.MethodPost, "/api/register", "", map[string]string{
		"fullname": "Long Pass", "email": "long@example.com", "password": long,
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "weak_password") {
		t.Fatalf("long password register: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodPost, "/api/register", "", map[string]string{
		"fullname": "   ", "email": "blank@example.com", "password": "Str0ng!pass",
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid_fullname") {
		t.Fatalf("blank name register: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodPost, "/api/register", "", map[string]string{
		"fullname": "Carol C", "email": "carol@example.com", "password": "Str0ng!pass",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: got %d: %s", w.Code, w.Body.String())
	}
	token := decode[sessionBody](t, w).Token

	w = call(t, r, http.MethodPut, "/api/user/password", token, map[string]string{
		"currentPassword": "Str0ng!pass", "newPassword": long,
	})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "weak_password") {
		t.Fatalf("long password change: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodPut, "/api/user", token, map[string]string{"fullname": "    "})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid_fullname") {
		t.Fatalf("blank name update: got %d: %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodGet, "/api/user", token, nil)
	if !strings.Contains(w.Body.String(), `"fullname":"Carol C"`) {
		t.Fatalf("rejected update changed the profile: %s", w.Body.String())
	}
}

func TestLogin_MalformedEmailIsInvalidCredentials(t *testing.T) {
	r := setupRouter(t)

	w := call(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"email": "not-an-email", "password": "Str0ng!pass",
	})
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "invalid_credentials") {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
}
