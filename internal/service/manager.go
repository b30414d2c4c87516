package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/model"
	"crowdwatch/internal/service/detection"
	"crowdwatch/internal/vision"
)

var ErrCameraUnavailable = errors.New("camera not accessible")

// Broadcaster pushes a message to every live counts viewer.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Manager owns the camera. Run is the only reader of the device; everything
// else (MJPEG viewers, counts polling, captures) works from what Run
// publishes.
type Manager struct {
	camera      vision.Source
	engine      vision.Engine
	processor   *detection.Processor
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	logger      *logger.Logger
	now         func() time.Time

	active atomic.Bool

	mu          sync.RWMutex
	counts      model.Counts
	latest      vision.Frame
	running     bool
	detectError bool

	viewersMu sync.Mutex
	viewers   map[uint64]chan []byte
	nextID    uint64
	stopped   bool
}

// NewManager creates a manager for camera. A nil camera gives a manager
// whose stream is permanently unavailable. Detection starts enabled.
func NewManager(camera vision.Source, engine vision.Engine, processor *detection.Processor,
	broadcaster Broadcaster, metrics *metrics.Metrics, logger *logger.Logger) *Manager {
	m := &Manager{
		camera:      camera,
		engine:      engine,
		processor:   processor,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		counts:      model.Counts{},
		viewers:     make(map[uint64]chan []byte),
		stopped:     camera == nil,
	}
	m.active.Store(true)
	return m
}

// Run reads the camera until ctx is cancelled or the device stops
// delivering frames. All viewer streams end when Run returns.
func (m *Manager) Run(ctx context.Context) error {
	if m.camera == nil {
		return ErrCameraUnavailable
	}

	stop := context.AfterFunc(ctx, func() { m.camera.Close() })
	defer stop()

	m.setRunning(true)
	defer m.finish()

	m.logger.Info("Live camera loop started (detection %s)", onOff(m.active.Load()))

	for {
		frame, ok := m.camera.Read()
		if !ok {
			if ctx.Err() != nil {
				m.logger.Info("Live camera loop stopped")
				return nil
			}
			m.logger.Error("Camera read failed, live stream stopped")
			return ErrCameraUnavailable
		}

		m.metrics.FramesRead.Add(1)
		m.processFrame(ctx, frame)
	}
}

func (m *Manager) processFrame(ctx context.Context, frame vision.Frame) {
	defer frame.Close()

	m.mu.Lock()
	if m.latest != nil {
		m.latest.Close()
	}
	m.latest = frame.Clone()
	m.mu.Unlock()

	if m.active.Load() {
		m.detect(ctx, frame)
	}

	if m.viewerCount() == 0 {
		return
	}

	jpeg, err := m.engine.EncodeJPEG(frame)
	if err != nil {
		m.logger.Warning("Failed to encode live frame: %v", err)
		return
	}
	m.publish(jpeg)
}

func (m *Manager) detect(ctx context.Context, frame vision.Frame) {
	detections, err := m.engine.Detect(ctx, frame)
	if err != nil {
		m.metrics.DetectionErrors.Add(1)
		m.mu.Lock()
		first := !m.detectError
		m.detectError = true
		m.mu.Unlock()
		if first {
			m.logger.Error("Live detection failing: %v", err)
		}
		return
	}

	if err := m.engine.Annotate(frame, detections); err != nil {
		m.logger.Warning("Failed to annotate live frame: %v", err)
	}

	counts := detection.CountDetections(detections)
	m.metrics.FramesDetected.Add(1)
	m.metrics.ObserveLive(counts)

	m.mu.Lock()
	if m.detectError {
		m.logger.Info("Live detection recovered")
		m.detectError = false
	}
	changed := !m.counts.Equal(counts)
	m.counts = counts
	m.mu.Unlock()

	if changed && m.broadcaster != nil {
		if msg, err := json.Marshal(dto.NewCountsResponse(counts)); err == nil {
			m.broadcaster.Broadcast(msg)
		}
	}
}

// publish hands jpeg to every viewer. A viewer still holding the previous
// frame gets it replaced, so slow viewers skip frames instead of queueing.
func (m *Manager) publish(jpeg []byte) {
	m.viewersMu.Lock()
	defer m.viewersMu.Unlock()

	for _, ch := range m.viewers {
		select {
		case ch <- jpeg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- jpeg:
		default:
		}
		m.metrics.FramesDropped.Add(1)
	}
}

// Subscribe registers an MJPEG viewer. The channel is closed when the
// camera loop ends; cancel must be called when the viewer leaves.
func (m *Manager) Subscribe() (frames <-chan []byte, cancel func()) {
	ch := make(chan []byte, 1)

	m.viewersMu.Lock()
	if m.stopped {
		m.viewersMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.nextID++
	id := m.nextID
	m.viewers[id] = ch
	m.viewersMu.Unlock()
	m.metrics.StreamClients.Add(1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.viewersMu.Lock()
			if c, ok := m.viewers[id]; ok {
				delete(m.viewers, id)
				close(c)
			}
			m.viewersMu.Unlock()
			m.metrics.StreamClients.Add(-1)
		})
	}
}

func (m *Manager) viewerCount() int {
	m.viewersMu.Lock()
	defer m.viewersMu.Unlock()
	return len(m.viewers)
}

func (m *Manager) setRunning(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
}

func (m *Manager) finish() {
	m.mu.Lock()
	m.running = false
	if m.latest != nil {
		m.latest.Close()
		m.latest = nil
	}
	m.mu.Unlock()

	m.viewersMu.Lock()
	m.stopped = true
	for id, ch := range m.viewers {
		delete(m.viewers, id)
		close(ch)
	}
	m.viewersMu.Unlock()
}

// Counts returns a copy of the live counts table.
func (m *Manager) Counts() model.Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts.Clone()
}

// SetDetection turns live detection on or off. While off, frames pass
// through unannotated and the counts table keeps its last value.
func (m *Manager) SetDetection(active bool) {
	if m.active.Swap(active) != active {
		m.logger.Info("Live detection %s", onOff(active))
	}
}

func (m *Manager) DetectionActive() bool {
	return m.active.Load()
}

// Running reports whether the camera loop is delivering frames.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Capture annotates the most recent camera frame and stores it as
// capture_<timestamp>.jpg.
func (m *Manager) Capture(ctx context.Context) (*dto.MediaResult, error) {
	m.mu.RLock()
	if !m.running || m.latest == nil {
		m.mu.RUnlock()
		return nil, ErrCameraUnavailable
	}
	frame := m.latest.Clone()
	m.mu.RUnlock()
	defer frame.Close()

	name := "capture_" + m.now().Format("20060102_150405") + ".jpg"
	counts, err := m.processor.SaveAnnotated(ctx, frame, name)
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveDetections("capture", counts)
	m.logger.Info("Captured %s: %d people, %d objects", name, counts.People(), counts.Total())

	return &dto.MediaResult{
		Status:   dto.StatusSuccess,
		ImageURL: m.processor.URL(name),
		Counts:   counts,
	}, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
