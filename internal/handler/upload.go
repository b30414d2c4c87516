package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crowdwatch/internal/config"
	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/service/detection"
)

// multipartMemory is how much of a form is kept in memory; the rest spills
// to temporary files.
const multipartMemory = 32 << 20

type uploadKind struct {
	field   string
	noun    string
	failure string
	process func(ctx context.Context, name string) (*dto.MediaResult, error)
}

func uploadHandler(kind uploadKind, processor MediaProcessor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeFail(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			writeFail(w, http.StatusBadRequest, "No "+kind.noun+" uploaded")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(kind.field)
		if err != nil {
			// A file input submitted without a file arrives as a plain value.
			if _, present := r.MultipartForm.Value[kind.field]; present {
				writeFail(w, http.StatusBadRequest, "No selected file")
				return
			}
			writeFail(w, http.StatusBadRequest, "No "+kind.noun+" uploaded")
			return
		}
		defer file.Close()

		if header.Filename == "" {
			writeFail(w, http.StatusBadRequest, "No selected file")
			return
		}

		name, err := processor.SaveUpload(header.Filename, file)
		switch {
		case errors.Is(err, detection.ErrInvalidFilename):
			writeFail(w, http.StatusBadRequest, "Invalid file name")
			return
		case errors.Is(err, detection.ErrEmptyUpload):
			writeFail(w, http.StatusBadRequest, "No selected file")
			return
		case err != nil:
			logger.Error("Error saving uploaded %s %q: %v", kind.noun, header.Filename, err)
			writeFail(w, http.StatusInternalServerError, "Unable to save upload")
			return
		}

		// Long clips must not be cut off by the server write timeout.
		http.NewResponseController(w).SetWriteDeadline(time.Time{})

		start := time.Now()
		result, err := kind.process(r.Context(), name)
		if err != nil {
			logger.Error("Error processing %s %s: %v", kind.noun, name, err)
			writeFail(w, http.StatusUnprocessableEntity, kind.failure)
			return
		}

		logger.Info("Processed %s %s in %s: %d people", kind.noun, name, time.Since(start).Round(time.Millisecond), result.Counts.People())
		writeJSON(w, http.StatusOK, result)
	}
}

// UploadImageHandler annotates an uploaded image (form field "image").
func UploadImageHandler(processor MediaProcessor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return uploadHandler(uploadKind{
		field:   "image",
		noun:    "image",
		failure: "Unable to process uploaded image",
		process: processor.ProcessImage,
	}, processor, cfg, logger)
}

// UploadVideoHandler annotates every frame of an uploaded clip (form field "video").
func UploadVideoHandler(processor MediaProcessor, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return uploadHandler(uploadKind{
		field:   "video",
		noun:    "video",
		failure: "Unable to open uploaded video",
		process: processor.ProcessVideo,
	}, processor, cfg, logger)
}
