package ai

import (
	"fmt"
	"image"
	"image/color"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/vision"

	"gocv.io/x/gocv"
)

var boxColor = color.RGBA{R: 0, G: 200, B: 0, A: 0}

// Annotate draws a box and the label of every detection onto the frame.
func (s *DetectorService) Annotate(frame vision.Frame, detections []dto.DetectionResult) error {
	f, err := matOf(frame)
	if err != nil {
		return err
	}

	for _, detection := range detections {
		rect := image.Rect(detection.X, detection.Y, detection.X+detection.Width, detection.Y+detection.Height)
		if err := gocv.Rectangle(&f.mat, rect, boxColor, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}

		pt := image.Pt(detection.X, max(detection.Y-10, 20))
		if err := gocv.PutText(&f.mat, detection.Label, pt, gocv.FontHersheySimplex, 0.6, boxColor, 2); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}
