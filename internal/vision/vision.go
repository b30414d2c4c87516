// Package vision declares the frame-level contracts between the HTTP/service
// layers and the OpenCV-backed implementation in service/ai. Nothing here
// depends on OpenCV, so packages that only orchestrate frames can be tested
// with in-memory fakes.
package vision

import (
	"context"
	"errors"

	"crowdwatch/internal/dto"
)

var ErrNetworkNotReady = errors.New("detection network not initialized")

// Frame is a decoded image owned by whoever holds it. Close releases it.
type Frame interface {
	Clone() Frame
	Close() error
}

type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]dto.DetectionResult, error)
}

// Annotator draws detection boxes and labels onto the frame in place.
type Annotator interface {
	Annotate(frame Frame, detections []dto.DetectionResult) error
}

type VideoProps struct {
	FPS    float64
	Width  int
	Height int
}

// Source yields frames until it is exhausted or fails; ok=false ends it.
type Source interface {
	Read() (frame Frame, ok bool)
	Close() error
}

type VideoReader interface {
	Source
	Props() VideoProps
}

type VideoWriter interface {
	// Path is the file actually written, which may differ from the requested
	// one when the container had to fall back.
	Path() string
	Write(frame Frame) error
	Close() error
}

type Codec interface {
	EncodeJPEG(frame Frame) ([]byte, error)
	ReadImage(path string) (Frame, error)
	WriteImage(path string, frame Frame) error
	OpenVideo(path string) (VideoReader, error)
	CreateVideo(path string, props VideoProps) (VideoWriter, error)
}

// Engine bundles everything the detection pipelines need.
type Engine interface {
	Detector
	Annotator
	Codec
}
