package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/config"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/metrics"
	"crowdwatch/internal/repository/file"
	"crowdwatch/internal/repository/sqlite"
	"crowdwatch/internal/route"
	"crowdwatch/internal/service"
	"crowdwatch/internal/service/ai"
	"crowdwatch/internal/service/detection"
	"crowdwatch/internal/service/users"
	"crowdwatch/internal/service/websocket"
	"crowdwatch/internal/vision"
	"crowdwatch/internal/web"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	detector   *ai.DetectorService
	hubService *websocket.HubService
	manager    *service.Manager
	handler    http.Handler
}

// NewApp wires storage, detection, the live camera and the HTTP routes.
// A missing camera is not fatal: the dashboard still serves uploads.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.InstanceDirectory, cfg.UploadDirectory} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sqlite.New(cfg.DatabasePath, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	if cfg.UsesDefaultSecret() {
		log.Warning("SECRET_KEY is not set; sessions are signed with the built-in development key")
	}

	m := metrics.New()
	snapshots := file.NewSnapshotStore(cfg.UploadDirectory)
	detector := ai.NewDetectorService(cfg, log)
	processor := detection.NewProcessor(detector, cfg.UploadDirectory, cfg.UploadURLPrefix(), snapshots, m, log)
	hub := websocket.NewHubService(log)

	var camera vision.Source
	if cfg.CameraEnabled {
		if c, err := ai.OpenCamera(cfg.CameraDevice, log); err != nil {
			log.Warning("Live camera disabled: %v", err)
		} else {
			camera = c
		}
	}
	manager := service.NewManager(camera, detector, processor, hub, m, log)

	pages, err := web.Parse()
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	handler := route.SetupRoutes(route.Dependencies{
		Config:    cfg,
		Logger:    log,
		Metrics:   m,
		Tokens:    auth.NewTokenManager(cfg.SecretKey, cfg.TokenTTL),
		Users:     users.NewService(sqlite.NewUserRepository(db), log, cfg.AllowRoleSelection),
		Live:      manager,
		Processor: processor,
		Snapshots: snapshots,
		SafeZones: file.NewSafeZoneStore(cfg.SafeZonesPath()),
		Hub:       hub,
		Pages:     pages,
		DB:        db,
		Model:     detector,
	})

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		detector:   detector,
		hubService: hub,
		manager:    manager,
		handler:    handler,
	}, nil
}

// Run serves HTTP and runs the camera loop until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hubService.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := a.manager.Run(ctx); err != nil {
			a.logger.Warning("Live camera unavailable: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              a.config.Address(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("CrowdWatch listening on http://%s", srv.Addr)
		a.logger.Info("Uploads: %s, model: %s", a.config.UploadDirectory, a.config.ModelPath)
		serveErr <- srv.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		// Streaming viewers end with the camera loop, not with Shutdown.
		cancel()
		err = srv.Shutdown(shutdownCtx)
	}

	cancel()
	wg.Wait()
	return err
}

// Close releases the detector, the database and the log files.
func (a *App) Close() error {
	return errors.Join(a.detector.Close(), a.db.Close(), a.logger.Close())
}
