//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/apextrades/internal/account"
	"github.com/geocoder89/apextrades/internal/auth"
	"github.com/geocoder89/apextrades/internal/config"
	"github.com/geocoder89/apextrades/internal/db"
	"github.com/geocoder89/apextrades/internal/domain/user"
	apphttp "github.com/geocoder89/apextrades/internal/http"
	"github.com/geocoder89/apextrades/internal/http/handlers"
	"github.com/geocoder89/apextrades/internal/observability"
	"github.com/geocoder89/apextrades/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pool    *pgxpool.Pool
	connStr string
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("apextrades_test"),
		tcpostgres.WithUsername("apextrades"),
		tcpostgres.WithPassword("apextrades"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		slog.Error("start postgres container", "err", err)
		return 1
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		slog.Error("connection string", "err", err)
		return 1
	}

	migrator, err := db.NewMigrator(connStr)
	if err != nil {
		slog.Error("migrator", "err", err)
		return 1
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		slog.Error("migrate up", "err", err)
		return 1
	}
	_ = migrator.Close()

	pool, err = db.NewPool(ctx, connStr, 10)
	if err != nil {
		slog.Error("pool", "err", err)
		return 1
	}
	defer pool.Close()

	return m.Run()
}

func resetUsers(t *testing.T) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE users`); err != nil {
		t.Fatalf("failed to truncate users: %v", err)
	}
}

func newService() (*account.Service, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	repo := postgres.NewUsersRepo(pool, prom)
	return account.NewService(repo, auth.NewManager("integration-secret", time.Hour), account.WithOutcomeRecorder(prom)), reg
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	svc, reg := newService()
	cfg := config.Config{Env: "test", OTELServiceName: "apextrades-it", CORSAllowedOrigins: []string{"http://localhost:3000"}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return apphttp.NewRouter(log, cfg, apphttp.Deps{
		Accounts: svc,
		Gatherer: reg,
		Checks:   map[string]handlers.Check{"db": pool.Ping},
	})
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
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

func TestRegisterLoginAndPlanUpgrade(t *testing.T) {
	resetUsers(t)
	r := newRouter(t)

	w := call(t, r, http.MethodPost, "/api/register", "", map[string]string{
		"fullname": "Alice Trader",
		"email":    "alice@example.com",
		"password": "Str0ng!pass",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}

	var reg struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = call(t, r, http.MethodGet, "/api/user", reg.Token, nil)
	var got user.User
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Plan != "free" || got.Balance != 0 || got.Joined.IsZero() {
		t.Fatalf("unexpected stored defaults: %+v", got)
	}

	w = call(t, r, http.MethodPut, "/api/user/plan", reg.Token, map[string]string{"plan": "enterprise"})
	if w.Code != http.StatusOK {
		t.Fatalf("update plan: %d %s", w.Code, w.Body.String())
	}

	w = call(t, r, http.MethodGet, "/api/user", reg.Token, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Plan != "enterprise" {
		t.Fatalf("expected enterprise plan, got %q", got.Plan)
	}

	var hash string
	if err := pool.QueryRow(context.Background(), `SELECT password_hash FROM users WHERE id = $1`, reg.User.ID).Scan(&hash); err != nil {
		t.Fatalf("select hash: %v", err)
	}
	if len(hash) < 7 || hash[:7] != "$2a$10$" {
		t.Fatalf("expected bcrypt cost 10 hash, got %q", hash)
	}

	if w := call(t, r, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}
}

func TestConcurrentRegistrationHitsUniqueConstraint(t *testing.T) {
	resetUsers(t)
	svc, _ := newService()

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), account.RegisterInput{
				FullName: "Racer",
				Email:    "race@example.com",
				Password: "Str0ng!pass",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, user.ErrEmailTaken):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one registration, got %d", ok)
	}

	var count int
	if err := pool.QueryRow(context.Background(), `SELECT count(*) FROM users WHERE email = 'race@example.com'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
}

func TestProfileUpdateAgainstPostgres(t *testing.T) {
	resetUsers(t)
	svc, _ := newService()
	ctx := context.Background()

	a, err := svc.Register(ctx, account.RegisterInput{FullName: "Alice A", Email: "a@example.com", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, err := svc.Register(ctx, account.RegisterInput{FullName: "Bob B", Email: "b@example.com", Password: "Str0ng!pass"}); err != nil {
		t.Fatalf("register b: %v", err)
	}
	id := auth.Identity{UserID: a.User.ID}

	phone := "+15550100"
	u, err := svc.UpdateProfile(ctx, id, user.ProfileUpdate{Phone: &phone})
	if err != nil || u.Phone == nil || *u.Phone != phone || u.FullName != "Alice A" {
		t.Fatalf("set phone: %+v %v", u, err)
	}

	empty := ""
	u, err = svc.UpdateProfile(ctx, id, user.ProfileUpdate{Phone: &empty})
	if err != nil || u.Phone != nil {
		t.Fatalf("clear phone: %+v %v", u, err)
	}

	taken := "b@example.com"
	if _, err := svc.UpdateProfile(ctx, id, user.ProfileUpdate{Email: &taken}); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if err := svc.ChangePassword(ctx, id, "wrong", "N3w!password"); !errors.Is(err, user.ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}
	if err := svc.ChangePassword(ctx, id, "Str0ng!pass", "N3w!password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "a@example.com", "N3w!password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
