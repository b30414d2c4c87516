package handler

import (
	"errors"
	"net/http"
	"time"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/service"
)

const mjpegBoundary = "frame"

var frameHeader = []byte("--" + mjpegBoundary + "\r\nContent-Type: image/jpeg\r\n\r\n")

// VideoFeedHandler streams the live camera as MJPEG until the viewer leaves
// or the camera loop ends.
func VideoFeedHandler(live LiveService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !live.Running() {
			http.Error(w, "Camera not accessible", http.StatusServiceUnavailable)
			return
		}

		frames, cancel := live.Subscribe()
		defer cancel()

		rc := http.NewResponseController(w)
		// The stream outlives the server write timeout.
		rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusOK)
		rc.Flush()

		logger.Info("MJPEG viewer %s connected", r.RemoteAddr)
		defer logger.Info("MJPEG viewer %s disconnected", r.RemoteAddr)

		for {
			select {
			case <-r.Context().Done():
				return
			case jpeg, ok := <-frames:
				if !ok {
					return
				}
				if _, err := w.Write(frameHeader); err != nil {
					return
				}
				if _, err := w.Write(jpeg); err != nil {
					return
				}
				if _, err := w.Write([]byte("\r\n")); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	}
}

func CountsHandler(live LiveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.NewCountsResponse(live.Counts()))
	}
}

func StartDetectionHandler(live LiveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live.SetDetection(true)
		writeJSON(w, http.StatusOK, dto.StatusResponse{Status: dto.StatusSuccess, Message: "Detection started"})
	}
}

func StopDetectionHandler(live LiveService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live.SetDetection(false)
		writeJSON(w, http.StatusOK, dto.StatusResponse{Status: dto.StatusSuccess, Message: "Detection stopped"})
	}
}

// CaptureHandler annotates and stores the current camera frame.
func CaptureHandler(live LiveService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := live.Capture(r.Context())
		if err != nil {
			if errors.Is(err, service.ErrCameraUnavailable) {
				writeFail(w, http.StatusServiceUnavailable, "Camera not accessible")
				return
			}
			logger.Error("Capture failed: %v", err)
			writeFail(w, http.StatusInternalServerError, "Capture failed")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
