package handler

import (
	"context"
	"net/http"
	"time"

	"crowdwatch/internal/logger"
)

// Pinger is satisfied by *sql.DB and the sqlite repository.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ModelStatus reports whether the detection network is loaded.
type ModelStatus interface {
	Ready() bool
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Camera    bool   `json:"camera"`
	Detection bool   `json:"detection"`
	Model     bool   `json:"model"`
}

// HealthHandler reports database reachability, the camera loop state and
// whether the detection network loaded. Only the database decides the status
// code; the dashboard works without a camera or a model.
func HealthHandler(db Pinger, live LiveService, detector ModelStatus, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{
			Status:    "ok",
			Database:  "ok",
			Camera:    live.Running(),
			Detection: live.DetectionActive(),
			Model:     detector.Ready(),
		}
		status := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			logger.Error("Health check: database ping failed: %v", err)
			resp.Status = "fail"
			resp.Database = "unavailable"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
