package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"droneFleetManagement/internal/config"
	"droneFleetManagement/internal/db"
	"droneFleetManagement/internal/httpapi"
	"droneFleetManagement/internal/lifecycle"
	"droneFleetManagement/internal/telemetry"
	"droneFleetManagement/repository"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("configuration loaded", "config", cfg.String())

	// Open DB
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("close db", "err", err)
		}
	}()

	users := repository.NewUserRepository(d)
	drones := repository.NewDroneRepository(d)
	missions := repository.NewMissionRepository(d)

	engine := lifecycle.NewEngine(missions, drones)
	registry := telemetry.NewRegistry(cfg.Telemetry.OfflineGrace)
	hub := telemetry.NewHub(registry, logger, cfg.Telemetry.CommandTimeout)
	ws := telemetry.NewWSHandler(hub, cfg.Auth.JWTSecret, cfg.Server.AllowedOrigins, logger)

	api := httpapi.New(httpapi.Deps{
		Logger:         logger,
		Engine:         engine,
		Drones:         drones,
		Missions:       missions,
		Users:          users,
		Registry:       registry,
		WS:             ws,
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for signal
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
