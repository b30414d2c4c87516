package handler

import (
	"encoding/json"
	"net/http"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/repository"
)

// SaveSafeZonesHandler replaces the stored zone list.
func SaveSafeZonesHandler(store repository.SafeZoneStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SafeZones
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			writeFail(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := store.Save(req.Zones); err != nil {
			logger.Error("Error saving safe zones: %v", err)
			writeFail(w, http.StatusInternalServerError, "unable to save safe zones")
			return
		}
		logger.Info("%s saved %d safe zones", sessionEmail(r), len(req.Zones))
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

func GetSafeZonesHandler(store repository.SafeZoneStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zones, err := store.Load()
		if err != nil {
			logger.Error("Error loading safe zones: %v", err)
			writeFail(w, http.StatusInternalServerError, "unable to load safe zones")
			return
		}
		if zones == nil {
			zones = []json.RawMessage{}
		}
		writeJSON(w, http.StatusOK, dto.SafeZones{Zones: zones})
	}
}
