package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokens = auth.NewTokenManager("test-secret", time.Hour)

func issue(t *testing.T, role model.Role) string {
	t.Helper()
	token, _, err := tokens.Issue(&model.User{Name: "Ana", Email: "ana@example.com", Role: role})
	require.NoError(t, err)
	return token
}

// echoClaims answers with the email from the session, or "anonymous".
var echoClaims = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if claims, ok := auth.FromContext(r.Context()); ok {
		w.Write([]byte(claims.Email()))
		return
	}
	w.Write([]byte("anonymous"))
})

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(tokens, logger.Discard())(echoClaims)

	tests := []struct {
		name       string
		path       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
		wantLoc    string
	}{
		{
			name:       "public page without session",
			path:       "/login4",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:       "static files are public",
			path:       "/static/uploads/det_a.jpg",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name: "cookie session",
			path: "/get_counts",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: issue(t, model.RoleUser)})
			},
			wantStatus: http.StatusOK,
			wantBody:   "ana@example.com",
		},
		{
			name: "bearer session",
			path: "/api/users",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+issue(t, model.RoleAdmin))
			},
			wantStatus: http.StatusOK,
			wantBody:   "ana@example.com",
		},
		{
			name:       "api call without session",
			path:       "/get_counts",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "invalid token",
			path: "/api/users",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "garbage"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "browser navigation without session",
			path: "/dashboard",
			setup: func(r *http.Request) {
				r.Header.Set("Accept", "text/html,application/xhtml+xml")
			},
			wantStatus: http.StatusSeeOther,
			wantLoc:    "/login4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.setup != nil {
				tt.setup(req)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := AuthMiddleware(tokens, logger.Discard())(RequireAdmin(echoClaims))

	req := httptest.NewRequest(http.MethodPost, "/admin/promote", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: issue(t, model.RoleUser)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body dto.StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, dto.StatusResponse{Status: "fail", Message: "only admin"}, body)

	req = httptest.NewRequest(http.MethodPost, "/admin/promote", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: issue(t, model.RoleAdmin)})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", seen)
}
