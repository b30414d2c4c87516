package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/model"
	"crowdwatch/internal/repository/file"
	"crowdwatch/internal/service/detection"
	"crowdwatch/internal/vision/visiontest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages [][]byte
}

func (b *recordingBroadcaster) Broadcast(message []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

type managerFixture struct {
	manager     *Manager
	camera      *visiontest.Camera
	engine      *visiontest.Engine
	broadcaster *recordingBroadcaster
	dir         string
	done        chan error
	cancel      context.CancelFunc
}

func startManager(t *testing.T) *managerFixture {
	t.Helper()

	dir := t.TempDir()
	engine := &visiontest.Engine{}
	camera := visiontest.NewCamera()
	broadcaster := &recordingBroadcaster{}
	m := metrics.New()
	processor := detection.NewProcessor(engine, dir, "/static/uploads", file.NewSnapshotStore(dir), m, logger.Discard())

	manager := NewManager(camera, engine, processor, broadcaster, m, logger.Discard())
	manager.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	require.Eventually(t, manager.Running, 2*time.Second, 5*time.Millisecond)
	t.Cleanup(cancel)

	return &managerFixture{
		manager:     manager,
		camera:      camera,
		engine:      engine,
		broadcaster: broadcaster,
		dir:         dir,
		done:        done,
		cancel:      cancel,
	}
}

func (f *managerFixture) waitCounts(t *testing.T, want model.Counts) {
	t.Helper()
	require.Eventually(t, func() bool { return f.manager.Counts().Equal(want) }, 2*time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, frames <-chan []byte) string {
	t.Helper()
	select {
	case jpeg, ok := <-frames:
		require.True(t, ok, "stream closed")
		return string(jpeg)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return ""
	}
}

func TestManager_CountsReplacedEveryFrame(t *testing.T) {
	f := startManager(t)

	f.camera.Push("person", "person", "car")
	f.waitCounts(t, model.Counts{"person": 2, "car": 1})

	f.camera.Push("dog")
	f.waitCounts(t, model.Counts{"dog": 1})
	assert.Equal(t, 0, f.manager.Counts().People())
}

func TestManager_NoDetectionsClearsCounts(t *testing.T) {
	f := startManager(t)

	f.camera.Push("person")
	f.waitCounts(t, model.Counts{"person": 1})

	f.camera.Push()
	f.waitCounts(t, model.Counts{})
}

func TestManager_StreamsAnnotatedFrames(t *testing.T) {
	f := startManager(t)

	frames, cancel := f.manager.Subscribe()
	defer cancel()

	f.camera.Push("person")
	assert.Equal(t, "annotated:person", receive(t, frames))
}

func TestManager_DetectionOffPassesFramesThrough(t *testing.T) {
	f := startManager(t)

	f.camera.Push("person")
	f.waitCounts(t, model.Counts{"person": 1})

	f.manager.SetDetection(false)
	assert.False(t, f.manager.DetectionActive())

	frames, cancel := f.manager.Subscribe()
	defer cancel()

	f.camera.Push("car", "car")
	assert.Equal(t, "car,car", receive(t, frames))
	assert.Equal(t, model.Counts{"person": 1}, f.manager.Counts(), "counts keep their last value")

	f.manager.SetDetection(true)
	f.camera.Push("car", "car")
	assert.Equal(t, "annotated:car,car", receive(t, frames))
	f.waitCounts(t, model.Counts{"car": 2})
}

func TestManager_BroadcastsOnlyChanges(t *testing.T) {
	f := startManager(t)

	f.camera.Push("person")
	f.waitCounts(t, model.Counts{"person": 1})
	f.camera.Push("person")
	f.camera.Push("person", "person")
	f.waitCounts(t, model.Counts{"person": 2})

	require.Eventually(t, func() bool { return f.broadcaster.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	f.broadcaster.mu.Lock()
	last := f.broadcaster.messages[1]
	f.broadcaster.mu.Unlock()

	var payload dto.CountsResponse
	require.NoError(t, json.Unmarshal(last, &payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, model.Counts{"person": 2}, payload.Details)
}

func TestManager_DetectorFailureKeepsStreaming(t *testing.T) {
	f := startManager(t)
	f.engine.DetectErr = errors.New("no network")

	frames, cancel := f.manager.Subscribe()
	defer cancel()

	f.camera.Push("person")
	assert.Equal(t, "person", receive(t, frames))
	assert.Empty(t, f.manager.Counts())
}

func TestManager_CameraFailureEndsStreams(t *testing.T) {
	f := startManager(t)

	frames, _ := f.manager.Subscribe()
	f.camera.End()

	select {
	case err := <-f.done:
		assert.ErrorIs(t, err, ErrCameraUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	_, ok := <-frames
	assert.False(t, ok)

	late, _ := f.manager.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
	assert.False(t, f.manager.Running())
}

func TestManager_ContextCancelStopsCleanly(t *testing.T) {
	f := startManager(t)
	f.cancel()

	select {
	case err := <-f.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestManager_Capture(t *testing.T) {
	f := startManager(t)

	_, err := f.manager.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)

	f.camera.Push("person", "person")
	f.waitCounts(t, model.Counts{"person": 2})

	result, err := f.manager.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/static/uploads/capture_20240309_140507.jpg", result.ImageURL)
	assert.Equal(t, model.Counts{"person": 2}, result.Counts)

	data, err := os.ReadFile(filepath.Join(f.dir, "capture_20240309_140507.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "annotated:person,person\n", string(data))
}

func TestManager_NilCamera(t *testing.T) {
	m := NewManager(nil, &visiontest.Engine{}, nil, nil, metrics.New(), logger.Discard())

	assert.ErrorIs(t, m.Run(context.Background()), ErrCameraUnavailable)

	frames, _ := m.Subscribe()
	_, ok := <-frames
	assert.False(t, ok)

	_, err := m.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.True(t, m.DetectionActive())
}
