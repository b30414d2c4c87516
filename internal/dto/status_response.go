package dto

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
