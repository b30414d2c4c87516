package route

import (
	"fmt"
	"net/http"
	"strings"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/config"
	"crowdwatch/internal/handler"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/middleware"
	"crowdwatch/internal/repository"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	Tokens    *auth.TokenManager
	Users     handler.UserService
	Live      handler.LiveService
	Processor handler.MediaProcessor
	Snapshots repository.SnapshotStore
	SafeZones repository.SafeZoneStore
	Hub       handler.CountsHub
	Pages     handler.Renderer
	DB        handler.Pinger
	Model     handler.ModelStatus
}

// staticHandler serves files from dir without directory listings.
func staticHandler(dir string) http.Handler {
	files := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

type recoveryLogger struct {
	logger *logger.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic: %s", fmt.Sprint(v...))
}

// SetupRoutes registers pages, API endpoints and static file serving, and
// wraps the router with authentication, request IDs, access logging and
// panic recovery.
func SetupRoutes(d Dependencies) http.Handler {
	cfg, log := d.Config, d.Logger
	adminOnly := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }

	r := mux.NewRouter()

	// Static files (annotated uploads and captures live under here)
	r.PathPrefix("/static/").Handler(staticHandler(cfg.StaticDirectory))

	// Pages and session
	r.HandleFunc("/", handler.HomeHandler).Methods(http.MethodGet)
	r.HandleFunc("/login4", handler.LoginHandler(d.Users, d.Tokens, cfg, d.Pages, d.Metrics, log)).
		Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/register4", handler.RegisterHandler(d.Users, cfg, d.Pages, log)).
		Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/logout", handler.LogoutHandler(cfg)).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", handler.DashboardHandler(d.Pages, log)).Methods(http.MethodGet)

	// Admin
	r.Handle("/admin", adminOnly(handler.AdminPageHandler(d.Users, d.Pages, log))).Methods(http.MethodGet)
	r.Handle("/admin/promote", adminOnly(handler.PromoteHandler(d.Users, log))).Methods(http.MethodPost)
	r.Handle("/admin/demote", adminOnly(handler.DemoteHandler(d.Users, log))).Methods(http.MethodPost)
	r.Handle("/admin/delete", adminOnly(handler.DeleteUserHandler(d.Users, log))).Methods(http.MethodPost)

	// Live camera
	r.HandleFunc("/video_feed", handler.VideoFeedHandler(d.Live, log)).Methods(http.MethodGet)
	r.HandleFunc("/get_counts", handler.CountsHandler(d.Live)).Methods(http.MethodGet)
	r.Handle("/start_detection", adminOnly(handler.StartDetectionHandler(d.Live))).Methods(http.MethodPost)
	r.Handle("/stop_detection", adminOnly(handler.StopDetectionHandler(d.Live))).Methods(http.MethodPost)
	r.HandleFunc("/capture", handler.CaptureHandler(d.Live, log)).Methods(http.MethodPost)
	r.HandleFunc("/ws/counts", handler.CountsWebsocketHandler(d.Hub, d.Live, log)).Methods(http.MethodGet)

	// API endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload_image", handler.UploadImageHandler(d.Processor, cfg, log)).Methods(http.MethodPost)
	api.HandleFunc("/upload_video", handler.UploadVideoHandler(d.Processor, cfg, log)).Methods(http.MethodPost)
	api.HandleFunc("/users", handler.UsersAPIHandler(d.Users, log)).Methods(http.MethodGet)
	api.HandleFunc("/user_status", handler.UserStatusHandler(d.Users, d.Live, log)).Methods(http.MethodGet)
	api.HandleFunc("/safe_zones", handler.SaveSafeZonesHandler(d.SafeZones, log)).Methods(http.MethodPost)
	api.HandleFunc("/get_safe_zones", handler.GetSafeZonesHandler(d.SafeZones, log)).Methods(http.MethodGet)

	r.HandleFunc("/download_report", handler.DownloadReportHandler(d.Live, d.Snapshots, d.Metrics, log)).
		Methods(http.MethodGet)

	// Log endpoints
	r.Handle("/logs/{level}", adminOnly(handler.ShowLogsHandler(log))).Methods(http.MethodGet)
	r.Handle("/logs/{level}/clear", adminOnly(handler.ClearLogsHandler(log))).Methods(http.MethodPost)

	// Operations
	r.HandleFunc("/healthz", handler.HealthHandler(d.DB, d.Live, d.Model, log)).Methods(http.MethodGet)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	// Apply middleware
	var h http.Handler = middleware.AuthMiddleware(d.Tokens, log)(r)
	h = middleware.RequestID(h)
	h = handlers.LoggingHandler(log.AccessWriter(), h)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: log}),
		handlers.PrintRecoveryStack(true),
	)(h)
}
