package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/model"
	"crowdwatch/internal/repository"
	"crowdwatch/internal/vision"
)

// DefaultFPS is used when a clip does not report its frame rate.
const DefaultFPS = 20.0

var ErrEmptyUpload = errors.New("uploaded file is empty")

// Processor runs detection over uploaded media and stores annotated copies
// next to the originals.
type Processor struct {
	engine    vision.Engine
	uploadDir string
	urlPrefix string
	snapshots repository.SnapshotStore
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewProcessor creates a processor writing into uploadDir, which is served
// to browsers under urlPrefix.
func NewProcessor(engine vision.Engine, uploadDir, urlPrefix string, snapshots repository.SnapshotStore,
	metrics *metrics.Metrics, logger *logger.Logger) *Processor {
	return &Processor{
		engine:    engine,
		uploadDir: uploadDir,
		urlPrefix: urlPrefix,
		snapshots: snapshots,
		metrics:   metrics,
		logger:    logger,
	}
}

// URL returns the browser path of a file in the upload directory.
func (p *Processor) URL(name string) string {
	return path.Join(p.urlPrefix, name)
}

// SaveUpload stores an uploaded file under its sanitized name and returns
// that name.
func (p *Processor) SaveUpload(name string, r io.Reader) (string, error) {
	safe, err := uploadName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst := filepath.Join(p.uploadDir, safe)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", safe, err)
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to store %s: %w", safe, err)
	}
	if n == 0 {
		os.Remove(dst)
		return "", ErrEmptyUpload
	}

	p.logger.Info("Stored upload %s (%d bytes)", safe, n)
	return safe, nil
}

// SaveAnnotated detects objects on frame, draws them and writes the result
// as name in the upload directory.
func (p *Processor) SaveAnnotated(ctx context.Context, frame vision.Frame, name string) (model.Counts, error) {
	detections, err := p.engine.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if err := p.engine.Annotate(frame, detections); err != nil {
		return nil, fmt.Errorf("annotation failed: %w", err)
	}
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := p.engine.WriteImage(filepath.Join(p.uploadDir, name), frame); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return CountDetections(detections), nil
}

// ProcessImage annotates a stored image upload and records its counts as the
// image snapshot.
func (p *Processor) ProcessImage(ctx context.Context, name string) (result *dto.MediaResult, err error) {
	defer func() { p.metrics.UploadProcessed("image", err) }()

	frame, err := p.engine.ReadImage(filepath.Join(p.uploadDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defer frame.Close()

	outName := AnnotatedName(name)
	counts, err := p.SaveAnnotated(ctx, frame, outName)
	if err != nil {
		return nil, err
	}

	if err := p.snapshots.Save(model.ModeImage, counts); err != nil {
		return nil, fmt.Errorf("failed to save image snapshot: %w", err)
	}
	p.metrics.ObserveDetections("image", counts)
	p.logger.Info("Processed image %s: %d people, %d objects", name, counts.People(), counts.Total())

	return &dto.MediaResult{
		Status:   dto.StatusSuccess,
		ImageURL: p.URL(outName),
		Counts:   counts,
	}, nil
}

// ProcessVideo annotates every frame of a stored clip. Counts are summed over
// all frames, so one person visible in ten frames counts ten times.
func (p *Processor) ProcessVideo(ctx context.Context, name string) (result *dto.MediaResult, err error) {
	defer func() { p.metrics.UploadProcessed("video", err) }()

	reader, err := p.engine.OpenVideo(filepath.Join(p.uploadDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer reader.Close()

	props := reader.Props()
	if props.FPS <= 0 {
		props.FPS = DefaultFPS
	}

	writer, err := p.engine.CreateVideo(filepath.Join(p.uploadDir, AnnotatedVideoName(name, ".mp4")), props)
	if err != nil {
		return nil, fmt.Errorf("failed to create output video: %w", err)
	}
	outPath := writer.Path()

	total, frames, err := p.annotateFrames(ctx, reader, writer)
	if closeErr := writer.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to finish output video: %w", closeErr)
	}
	if err != nil {
		os.Remove(outPath)
		return nil, err
	}

	if err := p.snapshots.Save(model.ModeVideo, total); err != nil {
		return nil, fmt.Errorf("failed to save video snapshot: %w", err)
	}
	p.metrics.ObserveDetections("video", total)
	p.logger.Info("Processed video %s: %d frames, %d person detections, %d detections", name, frames, total.People(), total.Total())

	return &dto.MediaResult{
		Status:   dto.StatusSuccess,
		VideoURL: p.URL(filepath.Base(outPath)),
		Counts:   total,
	}, nil
}

func (p *Processor) annotateFrames(ctx context.Context, reader vision.VideoReader, writer vision.VideoWriter) (model.Counts, int, error) {
	total := model.Counts{}
	frames := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, frames, err
		}

		frame, ok := reader.Read()
		if !ok {
			return total, frames, nil
		}

		counts, err := p.annotateFrame(ctx, frame, writer)
		frame.Close()
		if err != nil {
			return nil, frames, fmt.Errorf("frame %d: %w", frames, err)
		}

		total.Merge(counts)
		frames++
	}
}

func (p *Processor) annotateFrame(ctx context.Context, frame vision.Frame, writer vision.VideoWriter) (model.Counts, error) {
	detections, err := p.engine.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}
	if err := p.engine.Annotate(frame, detections); err != nil {
		return nil, err
	}
	if err := writer.Write(frame); err != nil {
		return nil, err
	}
	return CountDetections(detections), nil
}
