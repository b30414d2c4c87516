package detection

import (
	"crowdwatch/internal/dto"
	"crowdwatch/internal/model"
)

// CountDetections tallies detections per label. No detections gives an
// empty, non-nil table.
func CountDetections(detections []dto.DetectionResult) model.Counts {
	counts := model.Counts{}
	for _, d := range detections {
		counts.Add(d.Label)
	}
	return counts
}
