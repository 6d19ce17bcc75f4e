package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/restamate/pos-server/internal/app/domain/user"
	"github.com/restamate/pos-server/internal/app/services/users"
	"github.com/restamate/pos-server/internal/app/storage/memory"
	"github.com/restamate/pos-server/internal/httputil"
)

func newVerifier(t *testing.T) (*users.Service, user.User, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := users.New(store, nil, "test-secret", time.Hour)

	if err := svc.EnsureOwner(ctx, "boss", "owner-pass"); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	owner, token, err := svc.Login(ctx, "boss", "owner-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return svc, owner, token
}

func okHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			t.Errorf("authenticated user missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAcceptsBearerHeader(t *testing.T) {
	svc, _, token := newVerifier(t)
	handler := NewAuth(svc, nil).Handler(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	svc, _, token := newVerifier(t)
	handler := NewAuth(svc, nil).Handler(okHandler(t))

	// Websocket clients cannot set headers; the token rides the query string.
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejects(t *testing.T) {
	svc, _, _ := newVerifier(t)
	handler := NewAuth(svc, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run")
	}))

	cases := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"missing credentials", func(*http.Request) {}},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }},
		{"invalid token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var resp httputil.Response
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != "error" {
				t.Fatalf("envelope status = %q, want error", resp.Status)
			}
		})
	}
}

func TestAuthRejectsDeactivatedUser(t *testing.T) {
	svc, owner, _ := newVerifier(t)
	ctx := context.Background()

	server, err := svc.Register(ctx, owner, users.RegisterRequest{
		Username: "alice", Password: "secret1", Role: user.RoleServer,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, token, err := svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Deactivate(ctx, owner, server.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	handler := NewAuth(svc, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run for a deactivated user")
	}))
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	gate := RequireRoles(user.RoleOwner)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(u *user.User) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
		if u != nil {
			req = req.WithContext(context.WithValue(req.Context(), userKey, *u))
		}
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve(nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", code)
	}
	if code := serve(&user.User{ID: "u1", Role: user.RoleServer}); code != http.StatusForbidden {
		t.Fatalf("server: status = %d, want 403", code)
	}
	if code := serve(&user.User{ID: "u2", Role: user.RoleOwner}); code != http.StatusOK {
		t.Fatalf("owner: status = %d, want 200", code)
	}
}

func TestTraceAssignsAndEchoesRequestID(t *testing.T) {
	handler := Trace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("a trace id should be assigned")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "trace-123" {
		t.Fatalf("a caller-supplied trace id should be echoed")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 2)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", code)
	}
	if code := serve("10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("burst request: status = %d, want 200", code)
	}
	if code := serve("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("over-limit request: status = %d, want 429", code)
	}
	// Another client has its own budget.
	if code := serve("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("second client: status = %d, want 200", code)
	}
}
