package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRepoWithUser(t *testing.T, role string) (*repository.MemoryRepository, int64) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	id, err := repo.CreateUser(context.Background(), &models.User{Email: "ivan@example.com", PasswordHash: "x", Role: role})
	require.NoError(t, err)
	return repo, id
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken(42, models.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)

	fallback, err := GenerateToken(42, models.RoleUser, secret, -time.Hour)
	require.NoError(t, err)
	// a non-positive ttl falls back to the default
	_, err = ParseToken(fallback, secret)
	assert.NoError(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	repo, id := newRepoWithUser(t, models.RoleUser)
	cfg := &JWTConfig{SecretKey: secret, Repo: repo}

	var gotID int64
	var gotRole string
	handler := AuthMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserID(r.Context())
		gotRole, _ = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// the role claim is not trusted, storage wins
	token, err := GenerateToken(id, models.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, gotID)
	assert.Equal(t, models.RoleUser, gotRole)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Not authenticated"}`, rec.Body.String())

	unknown, err := GenerateToken(id+100, models.RoleUser, secret, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+unknown)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(context.WithValue(req.Context(), RoleKey, models.RoleUser)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(context.WithValue(req.Context(), RoleKey, models.RoleAdmin)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSetAuthCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetAuthCookie(rec, "tok", 0)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(DefaultTokenTTL.Seconds()), cookies[0].MaxAge)
}
