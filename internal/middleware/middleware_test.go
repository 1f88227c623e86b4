package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/auth"
	"github.com/ayush/helsa/backend/internal/models"
)

type resolverFunc func(ctx context.Context, token string) (*models.User, error)

func (f resolverFunc) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	return f(ctx, token)
}

func staticResolver(users map[string]*models.User) TokenResolver {
	return resolverFunc(func(_ context.Context, token string) (*models.User, error) {
		if u, ok := users[token]; ok {
			return u, nil
		}
		return nil, apperr.Wrap(apperr.Unauthenticated, auth.MsgInvalidCredentials, errors.New("bad token"))
	})
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u != nil {
		w.Header().Set("X-User", u.Username)
	}
	w.WriteHeader(http.StatusNoContent)
})

func TestRequireAuth(t *testing.T) {
	alice := &models.User{ID: uuid.New(), Username: "alice@b.com"}
	mw := RequireAuth(staticResolver(map[string]*models.User{"good": alice}), zerolog.Nop())
	h := mw(okHandler)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser string
	}{
		{"valid token", "Bearer good", http.StatusNoContent, "alice@b.com"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantUser, rec.Header().Get("X-User"))
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Username: "root@b.com", IsAdmin: true}
	plain := &models.User{ID: uuid.New(), Username: "bob@b.com"}
	resolver := staticResolver(map[string]*models.User{"admin": admin, "plain": plain})
	h := RequireAuth(resolver, zerolog.Nop())(RequireAdmin(zerolog.Nop())(okHandler))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("admin"))
	assert.Equal(t, http.StatusForbidden, do("plain"))
	assert.Equal(t, http.StatusUnauthorized, do("nobody"))
}

func TestRequireAdmin_WithoutAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAdmin(zerolog.Nop())(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := chimw.RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diagnose", nil))

	out := buf.String()
	assert.Contains(t, out, `"message":"inside"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/diagnose"`)
	assert.Contains(t, out, `"request_id":`)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(zerolog.New(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
