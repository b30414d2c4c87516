package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"crowdwatch/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLive(t *testing.T) {
	m := New()

	m.ObserveLive(model.Counts{"person": 3, "car": 1})
	m.ObserveLive(model.Counts{"person": 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.livePeople))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.detections.WithLabelValues("live", "person")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detections.WithLabelValues("live", "car")))
}

func TestCountersByResult(t *testing.T) {
	m := New()

	m.UploadProcessed("image", nil)
	m.UploadProcessed("image", errors.New("decode failed"))
	m.UploadProcessed("video", nil)
	m.LoginAttempt(false)
	m.ReportGenerated(model.ModeVideo)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("image", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("image", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("video", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("video")))
}

func TestHandlerExposesGaugeFuncs(t *testing.T) {
	m := New()
	m.FramesRead.Add(42)
	m.StreamClients.Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "crowdwatch_frames_read_total 42")
	assert.Contains(t, string(body), "crowdwatch_stream_clients 2")
}
