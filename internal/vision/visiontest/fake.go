// Package visiontest provides in-memory implementations of the vision
// contracts for tests.
//
// A fake frame is a list of labels; the fake detector "sees" exactly those
// labels. Image files hold the labels comma separated on one line, video
// files hold one such line per frame.
package visiontest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/vision"
)

type Frame struct {
	Labels    []string
	Annotated bool
}

func NewFrame(labels ...string) *Frame {
	return &Frame{Labels: labels}
}

func (f *Frame) Clone() vision.Frame {
	return &Frame{Labels: append([]string(nil), f.Labels...), Annotated: f.Annotated}
}

func (f *Frame) Close() error { return nil }

func (f *Frame) String() string {
	s := strings.Join(f.Labels, ",")
	if f.Annotated {
		s = "annotated:" + s
	}
	return s
}

func asFrame(frame vision.Frame) (*Frame, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, fmt.Errorf("unexpected frame type %T", frame)
	}
	return f, nil
}

func parseLine(line string) *Frame {
	line = strings.TrimSpace(line)
	if line == "" {
		return NewFrame()
	}
	return NewFrame(strings.Split(line, ",")...)
}

// WriteImageFile stores a fake image holding labels.
func WriteImageFile(path string, labels ...string) error {
	return os.WriteFile(path, []byte(strings.Join(labels, ",")+"\n"), 0o644)
}

// WriteVideoFile stores a fake clip, one frame per entry.
func WriteVideoFile(path string, frames ...[]string) error {
	var b strings.Builder
	for _, labels := range frames {
		b.WriteString(strings.Join(labels, ","))
		b.WriteString("\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Engine is a fake vision.Engine.
type Engine struct {
	mu sync.Mutex

	DetectErr error
	// NotReady makes Ready report an unloaded network.
	NotReady bool
	// VideoFPS is reported by every opened clip.
	VideoFPS float64
	// MP4Unavailable makes CreateVideo fall back to .avi like a host without
	// an H.264 encoder.
	MP4Unavailable bool

	DetectCalls int
	LastProps   vision.VideoProps
}

func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.NotReady
}

func (e *Engine) Detect(ctx context.Context, frame vision.Frame) ([]dto.DetectionResult, error) {
	e.mu.Lock()
	e.DetectCalls++
	err := e.DetectErr
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	f, err := asFrame(frame)
	if err != nil {
		return nil, err
	}

	results := make([]dto.DetectionResult, 0, len(f.Labels))
	for i, label := range f.Labels {
		results = append(results, dto.DetectionResult{
			Label: label, Confidence: 0.9, X: i * 10, Y: i * 10, Width: 10, Height: 10,
		})
	}
	return results, nil
}

func (e *Engine) Annotate(frame vision.Frame, detections []dto.DetectionResult) error {
	f, err := asFrame(frame)
	if err != nil {
		return err
	}
	f.Annotated = true
	return nil
}

func (e *Engine) EncodeJPEG(frame vision.Frame) ([]byte, error) {
	f, err := asFrame(frame)
	if err != nil {
		return nil, err
	}
	return []byte(f.String()), nil
}

func (e *Engine) ReadImage(path string) (vision.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseLine(string(data)), nil
}

func (e *Engine) WriteImage(path string, frame vision.Frame) error {
	f, err := asFrame(frame)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(f.String()+"\n"), 0o644)
}

func (e *Engine) OpenVideo(path string) (vision.VideoReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var frames []*Frame
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		frames = append(frames, parseLine(line))
	}
	return &VideoReader{frames: frames, props: vision.VideoProps{FPS: e.VideoFPS, Width: 640, Height: 480}}, nil
}

func (e *Engine) CreateVideo(path string, props vision.VideoProps) (vision.VideoWriter, error) {
	e.mu.Lock()
	e.LastProps = props
	unavailable := e.MP4Unavailable
	e.mu.Unlock()

	if unavailable && filepath.Ext(path) == ".mp4" {
		path = strings.TrimSuffix(path, ".mp4") + ".avi"
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &VideoWriter{path: path, file: f}, nil
}

type VideoReader struct {
	frames []*Frame
	props  vision.VideoProps
	pos    int
}

func (r *VideoReader) Read() (vision.Frame, bool) {
	if r.pos >= len(r.frames) {
		return nil, false
	}
	f := r.frames[r.pos]
	r.pos++
	return f, true
}

func (r *VideoReader) Props() vision.VideoProps { return r.props }

func (r *VideoReader) Close() error { return nil }

type VideoWriter struct {
	path string
	file *os.File
}

func (w *VideoWriter) Path() string { return w.path }

func (w *VideoWriter) Write(frame vision.Frame) error {
	f, err := asFrame(frame)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.file, f.String())
	return err
}

func (w *VideoWriter) Close() error { return w.file.Close() }

// Camera is a fake live source fed through a channel. Read blocks until a
// frame is pushed or the feed is ended.
type Camera struct {
	frames chan vision.Frame
	once   sync.Once
	closed chan struct{}
}

func NewCamera() *Camera {
	return &Camera{frames: make(chan vision.Frame), closed: make(chan struct{})}
}

// Push hands one frame to the reader, blocking until it is taken.
func (c *Camera) Push(labels ...string) {
	select {
	case c.frames <- NewFrame(labels...):
	case <-c.closed:
	}
}

// End makes the next Read fail, like an unplugged device.
func (c *Camera) End() {
	c.once.Do(func() { close(c.closed) })
}

func (c *Camera) Read() (vision.Frame, bool) {
	select {
	case f := <-c.frames:
		return f, true
	case <-c.closed:
		return nil, false
	}
}

func (c *Camera) Close() error {
	c.End()
	return nil
}
