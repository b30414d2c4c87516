package dto

import "crowdwatch/internal/model"

// MediaResult is returned after an upload or capture has been annotated.
type MediaResult struct {
	Status   string       `json:"status"`
	ImageURL string       `json:"image_url,omitempty"`
	VideoURL string       `json:"video_url,omitempty"`
	Counts   model.Counts `json:"counts"`
}
