package ai

import (
	"fmt"

	"crowdwatch/internal/vision"

	"gocv.io/x/gocv"
)

// matFrame is a vision.Frame backed by an OpenCV matrix.
type matFrame struct {
	mat gocv.Mat
}

func (f *matFrame) Clone() vision.Frame {
	return &matFrame{mat: f.mat.Clone()}
}

func (f *matFrame) Close() error {
	return f.mat.Close()
}

func matOf(frame vision.Frame) (*matFrame, error) {
	f, ok := frame.(*matFrame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	return f, nil
}
