package dto

import "crowdwatch/internal/model"

// CountsResponse is the live counts payload of /get_counts and /ws/counts.
type CountsResponse struct {
	Count   int          `json:"count"`
	Details model.Counts `json:"details"`
}

func NewCountsResponse(c model.Counts) CountsResponse {
	return CountsResponse{Count: c.People(), Details: c.Clone()}
}
