package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/auth"
	"github.com/nourishbox/api/internal/middleware"
)

const testSecret = "test-secret"

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// bearer mints a real token so requests exercise the full auth middleware.
func bearer(t *testing.T, staffID, companyID uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, staffID, companyID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

// mountAuthed mounts register under prefix behind the JWT middleware, the
// way the router wires handlers in production.
func mountAuthed(prefix string, register func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Route(prefix, func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		register(r)
	})
	return r
}

func perform(t *testing.T, h http.Handler, method, path, body, authz string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}
