package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/model"
	"crowdwatch/internal/repository"
	"crowdwatch/internal/service/detection"
	"crowdwatch/internal/service/report"
)

// DownloadReportHandler renders the PDF crowd report for ?mode=live|image|video.
func DownloadReportHandler(live LiveService, snapshots repository.SnapshotStore,
	metrics *metrics.Metrics, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r) {
			http.Error(w, "Access denied: Only admin can download reports!", http.StatusForbidden)
			return
		}

		mode := r.URL.Query().Get("mode")
		if mode == "" {
			mode = string(model.ModeLive)
		}

		counts := model.Counts{}
		switch model.ReportMode(mode) {
		case model.ModeLive:
			counts = live.Counts()
		case model.ModeImage, model.ModeVideo:
			loaded, err := snapshots.Load(model.ReportMode(mode))
			if err != nil {
				logger.Error("Error loading %s counts: %v", mode, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			counts = loaded
		}

		var buf bytes.Buffer
		if err := report.Generate(&buf, mode, counts, time.Now()); err != nil {
			logger.Error("Error generating %s report: %v", mode, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		filename, err := detection.SanitizeFilename(report.Filename(mode))
		if err != nil {
			filename = "crowd_report.pdf"
		}

		metrics.ReportGenerated(reportLabel(mode))
		logger.Info("%s downloaded %s", sessionEmail(r), filename)

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
		buf.WriteTo(w)
	}
}

// reportLabel keeps arbitrary ?mode values out of the metric labels.
func reportLabel(mode string) model.ReportMode {
	switch m := model.ReportMode(mode); m {
	case model.ModeLive, model.ModeImage, model.ModeVideo:
		return m
	}
	return "other"
}
