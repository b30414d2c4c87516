package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/service/users"
)

const maxJSONBody = 1 << 20

// userAction is one of the admin account operations.
type userAction func(ctx context.Context, email string) error

func userActionHandler(action userAction, verb string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.EmailRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			writeFail(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" {
			writeFail(w, http.StatusBadRequest, "email is required")
			return
		}

		if err := action(r.Context(), req.Email); err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				writeFail(w, http.StatusNotFound, "user not found")
				return
			}
			logger.Error("Error trying to %s %s: %v", verb, req.Email, err)
			writeFail(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("Admin %s %s: %s", sessionEmail(r), verb, req.Email)
		writeJSON(w, http.StatusOK, dto.StatusResponse{Status: dto.StatusSuccess})
	}
}

func PromoteHandler(svc UserService, logger *logger.Logger) http.HandlerFunc {
	return userActionHandler(svc.Promote, "promote", logger)
}

func DemoteHandler(svc UserService, logger *logger.Logger) http.HandlerFunc {
	return userActionHandler(svc.Demote, "demote", logger)
}

func DeleteUserHandler(svc UserService, logger *logger.Logger) http.HandlerFunc {
	return userActionHandler(svc.Delete, "delete", logger)
}

// UsersAPIHandler lists accounts for admins. Other sessions get an empty list.
func UsersAPIHandler(svc UserService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := []dto.UserInfo{}
		if !isAdmin(r) {
			writeJSON(w, http.StatusOK, infos)
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			logger.Error("Error listing users: %v", err)
			writeFail(w, http.StatusInternalServerError, "internal error")
			return
		}
		for _, u := range list {
			infos = append(infos, dto.NewUserInfo(u))
		}
		writeJSON(w, http.StatusOK, infos)
	}
}

// UserStatusHandler reports an account together with the current live counts.
func UserStatusHandler(svc UserService, live LiveService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.Get(r.Context(), r.URL.Query().Get("email"))
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
				return
			}
			logger.Error("Error loading user status: %v", err)
			writeFail(w, http.StatusInternalServerError, "internal error")
			return
		}

		counts := live.Counts()
		writeJSON(w, http.StatusOK, dto.UserStatus{
			Email:     user.Email,
			Name:      user.Name,
			LastSeen:  time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
			LastCount: counts.People(),
			Details:   counts,
		})
	}
}
