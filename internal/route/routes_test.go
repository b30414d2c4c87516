package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/config"
	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/model"
	"crowdwatch/internal/repository/file"
	"crowdwatch/internal/repository/sqlite"
	"crowdwatch/internal/service"
	"crowdwatch/internal/service/detection"
	"crowdwatch/internal/service/users"
	"crowdwatch/internal/service/websocket"
	"crowdwatch/internal/vision/visiontest"
	"crowdwatch/internal/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	users   *users.Service
	tokens  *auth.TokenManager
	static  string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		StaticDirectory: filepath.Join(dir, "static"),
		UploadDirectory: filepath.Join(dir, "static", "uploads"),
		MaxUploadMB:     1,
		MetricsEnabled:  true,
	}
	require.NoError(t, os.MkdirAll(cfg.UploadDirectory, 0o755))

	db, err := sqlite.New(filepath.Join(dir, "instance", "database.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pages, err := web.Parse()
	require.NoError(t, err)

	m := metrics.New()
	engine := &visiontest.Engine{}
	snapshots := file.NewSnapshotStore(cfg.UploadDirectory)
	processor := detection.NewProcessor(engine, cfg.UploadDirectory, cfg.UploadURLPrefix(), snapshots, m, logger.Discard())
	svc := users.NewService(sqlite.NewUserRepository(db), logger.Discard(), false)
	tokens := auth.NewTokenManager("route-secret", time.Hour)

	h := SetupRoutes(Dependencies{
		Config:    cfg,
		Logger:    logger.Discard(),
		Metrics:   m,
		Tokens:    tokens,
		Users:     svc,
		Live:      service.NewManager(nil, engine, processor, nil, m, logger.Discard()),
		Processor: processor,
		Snapshots: snapshots,
		SafeZones: file.NewSafeZoneStore(filepath.Join(dir, "instance", "safe_zones.json")),
		Hub:       websocket.NewHubService(logger.Discard()),
		Pages:     pages,
		DB:        db,
		Model:     engine,
	})
	return &testServer{handler: h, users: svc, tokens: tokens, static: cfg.StaticDirectory}
}

func (s *testServer) session(t *testing.T, role model.Role) *http.Cookie {
	t.Helper()
	email := string(role) + "@example.com"
	user, err := s.users.CreateUser(context.Background(), string(role), email, "pw", role)
	require.NoError(t, err)
	token, _, err := s.tokens.Issue(user)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func (s *testServer) do(method, target string, cookie *http.Cookie, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	s := setupServer(t)

	rec := s.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login4", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/login4", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"camera":false`)
	assert.Contains(t, rec.Body.String(), `"model":true`)

	rec = s.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crowdwatch_frames_read_total")
}

func TestStaticFiles(t *testing.T) {
	s := setupServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.static, "uploads", "det_a.jpg"), []byte("jpeg"), 0o644))

	rec := s.do(http.MethodGet, "/static/uploads/det_a.jpg", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = s.do(http.MethodGet, "/static/uploads/", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnauthenticated(t *testing.T) {
	s := setupServer(t)

	for _, path := range []string{"/get_counts", "/api/users", "/api/get_safe_zones", "/download_report"} {
		rec := s.do(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		var body dto.StatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "missing or invalid session", body.Message)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login4", rec.Header().Get("Location"))
}

func TestRoleChecks(t *testing.T) {
	s := setupServer(t)
	user := s.session(t, model.RoleUser)
	admin := s.session(t, model.RoleAdmin)

	tests := []struct {
		method string
		path   string
		body   string
		user   int
		admin  int
	}{
		{http.MethodGet, "/dashboard", "", http.StatusOK, http.StatusOK},
		{http.MethodGet, "/get_counts", "", http.StatusOK, http.StatusOK},
		{http.MethodGet, "/admin", "", http.StatusForbidden, http.StatusOK},
		{http.MethodPost, "/admin/promote", `{"email":"nobody@example.com"}`, http.StatusForbidden, http.StatusNotFound},
		{http.MethodPost, "/stop_detection", "", http.StatusForbidden, http.StatusOK},
		{http.MethodPost, "/start_detection", "", http.StatusForbidden, http.StatusOK},
		{http.MethodGet, "/download_report?mode=live", "", http.StatusForbidden, http.StatusOK},
		{http.MethodGet, "/logs/warning", "", http.StatusForbidden, http.StatusNotFound},
		{http.MethodPost, "/capture", "", http.StatusServiceUnavailable, http.StatusServiceUnavailable},
		{http.MethodGet, "/video_feed", "", http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.user, s.do(tt.method, tt.path, user, tt.body).Code, "user")
			assert.Equal(t, tt.admin, s.do(tt.method, tt.path, admin, tt.body).Code, "admin")
		})
	}
}

func TestUsersAPIVisibility(t *testing.T) {
	s := setupServer(t)
	user := s.session(t, model.RoleUser)
	admin := s.session(t, model.RoleAdmin)

	rec := s.do(http.MethodGet, "/api/users", user, "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/users", admin, "")
	var list []dto.UserInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 2)
}

func TestMethodMismatch(t *testing.T) {
	s := setupServer(t)
	admin := s.session(t, model.RoleAdmin)

	rec := s.do(http.MethodGet, "/admin/promote", admin, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
