package ai

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"crowdwatch/internal/config"
	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/vision"

	"gocv.io/x/gocv"
)

// DetectorService runs an SSD network through OpenCV DNN and implements
// vision.Engine. The network is shared by the live loop, captures and
// uploads, so Forward calls are serialized.
type DetectorService struct {
	net        gocv.Net
	ready      bool
	netMu      sync.Mutex
	labels     map[int]string
	threshold  float32
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetectorService creates a detector with model/config paths and a logger.
// A network that fails to load is logged; Detect then reports
// vision.ErrNetworkNotReady while the rest of the engine keeps working.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		labels:     cocoLabels,
		threshold:  float32(cfg.ConfidenceThreshold),
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		logger:     logger,
	}

	if cfg.LabelsPath != "" {
		labels, err := loadLabels(cfg.LabelsPath)
		if err != nil {
			logger.Warning("Could not load labels from %s, using COCO names: %v", cfg.LabelsPath, err)
		} else {
			service.labels = labels
		}
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		net.Close()
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized from %s", s.modelPath)
	return nil
}

// Ready reports whether the network loaded.
func (s *DetectorService) Ready() bool {
	s.netMu.Lock()
	defer s.netMu.Unlock()
	return s.ready
}

// Detect returns every object above the confidence threshold, with boxes
// clipped to the frame.
func (s *DetectorService) Detect(ctx context.Context, frame vision.Frame) ([]dto.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := matOf(frame)
	if err != nil {
		return nil, err
	}
	if f.mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	s.netMu.Lock()
	defer s.netMu.Unlock()

	if !s.ready {
		return nil, vision.ErrNetworkNotReady
	}

	// Create blob with parameters that fit the SSD COCO input
	blob := gocv.BlobFromImage(f.mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	// Rows of [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates relative
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := f.mat.Cols(), f.mat.Rows()
	bounds := image.Rect(0, 0, cols, height)

	results := []dto.DetectionResult{}
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence < s.threshold {
			continue
		}

		box := image.Rect(
			int(rows.GetFloatAt(i, 3)*float32(cols)),
			int(rows.GetFloatAt(i, 4)*float32(height)),
			int(rows.GetFloatAt(i, 5)*float32(cols)),
			int(rows.GetFloatAt(i, 6)*float32(height)),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}

		results = append(results, dto.DetectionResult{
			Label:      s.classLabel(int(rows.GetFloatAt(i, 1))),
			Confidence: float64(confidence),
			X:          box.Min.X,
			Y:          box.Min.Y,
			Width:      box.Dx(),
			Height:     box.Dy(),
		})
	}

	return results, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.netMu.Lock()
	defer s.netMu.Unlock()

	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}

// classLabel maps model class IDs to label names.
func (s *DetectorService) classLabel(classID int) string {
	if label, exists := s.labels[classID]; exists {
		return label
	}
	return fmt.Sprintf("class%d", classID)
}

// loadLabels reads one label per line; the line number is the class ID.
// Empty lines and "???" placeholders leave gaps.
func loadLabels(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	labels := make(map[int]string)
	scanner := bufio.NewScanner(f)
	for id := 0; scanner.Scan(); id++ {
		label := strings.TrimSpace(scanner.Text())
		if label == "" || label == "???" {
			continue
		}
		labels[id] = label
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels in %s", path)
	}
	return labels, nil
}

var (
	_ vision.Engine = (*DetectorService)(nil)
	_ vision.Source = (*Camera)(nil)
)
