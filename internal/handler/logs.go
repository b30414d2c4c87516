package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"

	"github.com/gorilla/mux"
)

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// ShowLogsHandler serves /logs/{level} as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[mux.Vars(r)["level"]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		serveLogFile(w, r, logger.Directory(), filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates /logs/{level}/clear via the logger utility.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[mux.Vars(r)["level"]]
		if !ok {
			writeFail(w, http.StatusNotFound, "unknown log level")
			return
		}
		if err := logger.CleanLogs(filename); err != nil {
			writeFail(w, http.StatusInternalServerError, "unable to clear "+filename)
			return
		}
		writeJSON(w, http.StatusOK, dto.StatusResponse{Status: dto.StatusSuccess})
	}
}
