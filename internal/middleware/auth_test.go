package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bistro-pos/api/internal/auth"
	"github.com/bistro-pos/api/internal/enum"
	"github.com/bistro-pos/api/internal/middleware"
)

const testSecret = "test-secret"

func okHandler(t *testing.T, wantRole enum.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Error("claims missing from context")
		} else if claims.Role != wantRole {
			t.Errorf("role in context: got %d, want %d", claims.Role, wantRole)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateBearerHeader(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, 1, "anna", enum.RoleWaiter)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	handler := middleware.Authenticate(testSecret)(okHandler(t, enum.RoleWaiter))
	req := httptest.NewRequest(http.MethodGet, "/orders/active", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}

func TestAuthenticateSessionCookie(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, 2, "marek", enum.RoleCook)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	handler := middleware.Authenticate(testSecret)(okHandler(t, enum.RoleCook))
	req := httptest.NewRequest(http.MethodGet, "/orders/active", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}

func TestAuthenticateMissingSession(t *testing.T) {
	called := false
	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/orders/active", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
	if called {
		t.Error("inner handler must not run without a session")
	}
}

func TestAuthenticateBadToken(t *testing.T) {
	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/orders/active", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, 3, "ewa", enum.RoleCook)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	run := func(roles ...enum.Role) int {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler := middleware.Authenticate(testSecret)(middleware.RequireRole(roles...)(inner))
		req := httptest.NewRequest(http.MethodGet, "/reports/revenue", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := run(enum.RoleCook); code != http.StatusOK {
		t.Errorf("matching role: got %d, want 200", code)
	}
	if code := run(enum.RoleManager, enum.RoleWaiter); code != http.StatusForbidden {
		t.Errorf("role mismatch: got %d, want 403", code)
	}
}
