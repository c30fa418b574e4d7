package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/altobi/storyboard-exporter/internal/api"
	"github.com/altobi/storyboard-exporter/internal/config"
	"github.com/altobi/storyboard-exporter/internal/db"
	"github.com/altobi/storyboard-exporter/internal/encode"
	"github.com/altobi/storyboard-exporter/internal/exporter"
	"github.com/altobi/storyboard-exporter/internal/history"
	"github.com/altobi/storyboard-exporter/internal/logging"
	"github.com/altobi/storyboard-exporter/internal/metrics"
	"github.com/altobi/storyboard-exporter/internal/playback"
	"github.com/altobi/storyboard-exporter/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ExportsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create exports dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting storyboard exporter", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := history.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                STORYBOARD EXPORTER v" + config.Version + "                 ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	caps, err := encode.ProbeCapabilities(probeCtx, cfg.FFmpegPath())
	probeCancel()
	if err != nil {
		logger.Warn("ffmpeg probe failed, exports will be rejected until ffmpeg is available", "error", err)
		caps = encode.ParseEncoderList("")
	}

	bus := exporter.NewEventBus(0)
	m := metrics.New()

	exportSvc := exporter.NewService(exporter.Config{
		ExportsDir: cfg.ExportsDir(),
		FFmpegPath: cfg.FFmpegPath(),
		Caps:       caps,
		Repo:       repo,
		Bus:        bus,
		Metrics:    m,
		Logger:     logging.WithComponent(logger, "exporter"),
	})

	playbackSvc := playback.NewServer(logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Exports:    exportSvc,
		Repository: repo,
		Files:      playbackSvc,
		Metrics:    m,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Bus:    bus,
			Logger: logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo history.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo history.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
