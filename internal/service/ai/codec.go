package ai

import (
	"fmt"
	"path/filepath"
	"strings"

	"crowdwatch/internal/vision"

	"gocv.io/x/gocv"
)

// EncodeJPEG encodes the frame for the MJPEG stream.
func (s *DetectorService) EncodeJPEG(frame vision.Frame) ([]byte, error) {
	f, err := matOf(frame)
	if err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func (s *DetectorService) ReadImage(path string) (vision.Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("could not decode image %s", filepath.Base(path))
	}
	return &matFrame{mat: mat}, nil
}

func (s *DetectorService) WriteImage(path string, frame vision.Frame) error {
	f, err := matOf(frame)
	if err != nil {
		return err
	}
	if !gocv.IMWrite(path, f.mat) {
		return fmt.Errorf("could not write image %s", filepath.Base(path))
	}
	return nil
}

func (s *DetectorService) OpenVideo(path string) (vision.VideoReader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open video %s: %w", filepath.Base(path), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("could not open video %s", filepath.Base(path))
	}
	return &videoReader{capture: vc}, nil
}

// CreateVideo opens an H.264 (avc1) writer at path. When the local OpenCV
// build cannot encode H.264, it falls back to XVID in an .avi next to it.
func (s *DetectorService) CreateVideo(path string, props vision.VideoProps) (vision.VideoWriter, error) {
	if props.Width <= 0 || props.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", props.Width, props.Height)
	}

	vw, err := gocv.VideoWriterFile(path, "avc1", props.FPS, props.Width, props.Height, true)
	if err == nil && vw.IsOpened() {
		return &videoWriter{writer: vw, path: path}, nil
	}
	if vw != nil {
		vw.Close()
	}

	fallback := strings.TrimSuffix(path, filepath.Ext(path)) + ".avi"
	s.logger.Warning("avc1 encoder unavailable for %s, falling back to XVID", filepath.Base(path))

	vw, err = gocv.VideoWriterFile(fallback, "XVID", props.FPS, props.Width, props.Height, true)
	if err != nil {
		return nil, fmt.Errorf("could not create video %s: %w", filepath.Base(fallback), err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("could not create video %s", filepath.Base(fallback))
	}
	return &videoWriter{writer: vw, path: fallback}, nil
}

type videoReader struct {
	capture *gocv.VideoCapture
}

func (r *videoReader) Read() (vision.Frame, bool) {
	mat := gocv.NewMat()
	if !r.capture.Read(&mat) || mat.Empty() {
		mat.Close()
		return nil, false
	}
	return &matFrame{mat: mat}, true
}

func (r *videoReader) Props() vision.VideoProps {
	return vision.VideoProps{
		FPS:    r.capture.Get(gocv.VideoCaptureFPS),
		Width:  int(r.capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(r.capture.Get(gocv.VideoCaptureFrameHeight)),
	}
}

func (r *videoReader) Close() error {
	return r.capture.Close()
}

type videoWriter struct {
	writer *gocv.VideoWriter
	path   string
}

func (w *videoWriter) Path() string {
	return w.path
}

func (w *videoWriter) Write(frame vision.Frame) error {
	f, err := matOf(frame)
	if err != nil {
		return err
	}
	return w.writer.Write(f.mat)
}

func (w *videoWriter) Close() error {
	return w.writer.Close()
}
