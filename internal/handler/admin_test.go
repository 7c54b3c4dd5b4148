package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/session-relay/internal/config"
	"github.com/capitalize-ai/session-relay/internal/middleware"
	"github.com/capitalize-ai/session-relay/internal/model"
	"github.com/capitalize-ai/session-relay/internal/store"
	"github.com/capitalize-ai/session-relay/pkg/logger"
)

const testJWTSecret = "test-secret"

func operatorToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func newAdminRouter(t *testing.T) (chi.Router, *store.MemoryStore) {
	t.Helper()

	cfg := &config.Config{
		JWTSecret: testJWTSecret,
		Namespaces: []config.NamespaceConfig{
			{Name: "fiction", Provider: "mock", Model: "gpt-4o"},
		},
	}
	mem := store.NewMemoryStore()
	h := NewAdminHandler(cfg, mem, mem, logger.NewNop())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Get("/namespaces", h.ListNamespaces)
		r.Route("/namespaces/{namespace}", func(r chi.Router) {
			r.Get("/identities", h.ListIdentities)
			r.Put("/identities/{id}/allowed", h.SetIdentityAllowed)
			r.Get("/sessions/{id}", h.GetSession)
			r.Delete("/sessions/{id}", h.DeleteSession)
		})
	})
	return r, mem
}

func adminRequest(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdminRequiresAuth(t *testing.T) {
	r, _ := newAdminRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/namespaces", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminListNamespaces(t *testing.T) {
	r, _ := newAdminRouter(t)

	rec := adminRequest(t, r, http.MethodGet, "/api/v1/namespaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Namespaces []struct {
			Name     string `json:"name"`
			Provider string `json:"provider"`
		} `json:"namespaces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Namespaces, 1)
	assert.Equal(t, "fiction", body.Namespaces[0].Name)
	assert.Equal(t, "mock", body.Namespaces[0].Provider)
	assert.NotContains(t, rec.Body.String(), "token", "credentials never leave the process")
}

func TestAdminSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	r, mem := newAdminRouter(t)

	rec := adminRequest(t, r, http.MethodGet, "/api/v1/namespaces/fiction/sessions/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, mem.Save(ctx, model.NewSession("fiction", "99", "42")))

	rec = adminRequest(t, r, http.MethodGet, "/api/v1/namespaces/fiction/sessions/99", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var session model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "42", session.RemoteUserID)

	// Eviction also clears a held lock.
	acquired, err := mem.AcquireLock(ctx, "fiction", "99", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	rec = adminRequest(t, r, http.MethodDelete, "/api/v1/namespaces/fiction/sessions/99", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	found, err := mem.Find(ctx, "fiction", "99")
	require.NoError(t, err)
	assert.Nil(t, found)

	acquired, err = mem.AcquireLock(ctx, "fiction", "99", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestAdminSessionUnknownNamespace(t *testing.T) {
	r, _ := newAdminRouter(t)
	rec := adminRequest(t, r, http.MethodGet, "/api/v1/namespaces/ghost/sessions/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminIdentityToggle(t *testing.T) {
	ctx := context.Background()
	r, mem := newAdminRouter(t)

	_, err := mem.UpsertByRemoteID(ctx, &model.Identity{
		RemoteID:  "42",
		Namespace: "fiction",
		Username:  "ada",
		IsAllowed: true,
	})
	require.NoError(t, err)

	rec := adminRequest(t, r, http.MethodPut, "/api/v1/namespaces/fiction/identities/42/allowed",
		map[string]bool{"allowed": false})
	require.Equal(t, http.StatusOK, rec.Code)

	list, err := mem.List(ctx, "fiction")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsAllowed)

	rec = adminRequest(t, r, http.MethodGet, "/api/v1/namespaces/fiction/identities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ada"`)
}
