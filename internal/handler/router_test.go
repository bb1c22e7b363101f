package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/secondchance/internal/auth"
	"github.com/hitoshi/secondchance/internal/metrics"
	"github.com/hitoshi/secondchance/internal/middleware"
	"github.com/hitoshi/secondchance/internal/token"
)

// --- モック定義 ---

type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

var _ HealthChecker = (*mockHealthChecker)(nil)

// newTestRouter はテスト用の依存関係一式でルーターを構築する。
func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()

	if deps.HealthChecker == nil {
		deps.HealthChecker = &mockHealthChecker{}
	}
	if deps.RateLimiter == nil {
		rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
	}
	if deps.TokenVerifier == nil {
		issuer, err := token.New(token.Config{Secret: "test-secret", TTL: time.Hour})
		if err != nil {
			t.Fatalf("failed to create token issuer: %v", err)
		}
		deps.TokenVerifier = issuer
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.ItemService == nil {
		deps.ItemService = &mockItemService{}
	}
	if deps.SearchService == nil {
		deps.SearchService = &mockSearchService{}
	}

	return NewRouter(deps)
}

// --- テスト ---

func TestRouter_Health_ReturnsOK(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("body = %q, should contain status ok", w.Body.String())
	}
}

func TestRouter_Health_StoreUnreachable_Returns503(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		HealthChecker: &mockHealthChecker{
			pingFn: func(ctx context.Context) error {
				return errors.New("connection refused")
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_Metrics_Exposed(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	router := newTestRouter(t, &RouterDeps{
		Metrics:  collector,
		Gatherer: registry,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_UpdateWithoutToken_Returns401(t *testing.T) {
	called := false
	router := newTestRouter(t, &RouterDeps{
		AuthService: &mockAuthService{
			updateProfileFn: func(ctx context.Context, identityEmail, newName string) (*auth.UpdateResult, error) {
				called = true
				return &auth.UpdateResult{Token: "t"}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPut, "/api/auth/update", strings.NewReader(`{"name":"New"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("service must not be called without a valid token")
	}
}

func TestRouter_UpdateWithValidToken_ReachesHandler(t *testing.T) {
	issuer, err := token.New(token.Config{Secret: "test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	var gotEmail string
	router := newTestRouter(t, &RouterDeps{
		TokenVerifier: issuer,
		AuthService: &mockAuthService{
			updateProfileFn: func(ctx context.Context, identityEmail, newName string) (*auth.UpdateResult, error) {
				gotEmail = identityEmail
				return &auth.UpdateResult{Token: "reissued"}, nil
			},
		},
	})

	tok, err := issuer.Issue("user-id-123", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/auth/update", strings.NewReader(`{"name":"New"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	// アイデンティティはトークンのemailクレーム由来であること
	if gotEmail != "alice@example.com" {
		t.Errorf("identity email = %q, want %q", gotEmail, "alice@example.com")
	}
}

func TestRouter_RegisterAndLogin_DoNotRequireToken(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		AuthService: &mockAuthService{
			registerFn: func(ctx context.Context, email, password string) (*auth.RegisterResult, error) {
				return &auth.RegisterResult{Email: email, Token: "t"}, nil
			},
			loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
				return &auth.LoginResult{Token: "t", DisplayName: "User", Email: email}, nil
			},
		},
	})

	body := `{"email":"alice@example.com","password":"secret123"}`

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("register status = %d, want %d", w.Code, http.StatusCreated)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("login status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_SecurityHeadersPresent(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", got, "DENY")
	}
}

func TestRouter_CORSPreflight_Returns204(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{
		CORSAllowedOrigin: "http://localhost:3000",
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/secondchance/items", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestRouter_AuthRateLimit_Returns429WhenExceeded(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigFromLimits(120, 2))
	t.Cleanup(rl.Stop)

	router := newTestRouter(t, &RouterDeps{
		RateLimiter: rl,
		AuthService: &mockAuthService{
			loginFn: func(ctx context.Context, email, password string) (*auth.LoginResult, error) {
				return &auth.LoginResult{Token: "t", DisplayName: "User", Email: email}, nil
			},
		},
	})

	body := `{"email":"alice@example.com","password":"secret123"}`
	var lastCode int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		lastCode = w.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("status after burst = %d, want %d", lastCode, http.StatusTooManyRequests)
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
