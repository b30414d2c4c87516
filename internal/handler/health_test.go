package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/vision/visiontest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	live := &fakeLive{running: true, active: true}
	engine := &visiontest.Engine{}
	handler := HealthHandler(db, live, engine, logger.Discard())

	mock.ExpectPing()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","camera":true,"detection":true,"model":true}`, rec.Body.String())

	mock.ExpectPing().WillReturnError(errors.New("database is locked"))
	live.running = false
	engine.NotReady = true
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"fail","database":"unavailable","camera":false,"detection":true,"model":false}`, rec.Body.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}
