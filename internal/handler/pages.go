package handler

import (
	"net/http"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/web"
)

func DashboardHandler(pages Renderer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, pages, logger, web.DashboardPage, web.Page{User: viewer(r)})
	}
}

// AdminPageHandler lists every account with role controls.
func AdminPageHandler(svc UserService, pages Renderer, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			logger.Error("Error listing users: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		infos := make([]dto.UserInfo, 0, len(list))
		for _, u := range list {
			infos = append(infos, dto.NewUserInfo(u))
		}
		renderPage(w, pages, logger, web.AdminPage, web.Page{User: viewer(r), Users: infos})
	}
}
