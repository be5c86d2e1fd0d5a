// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casebook/internal/auth"
	"casebook/internal/config"
	"casebook/internal/database"
	"casebook/internal/handlers"
	"casebook/internal/middleware"
	"casebook/internal/ocr"
	"casebook/internal/records"
	"casebook/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate models
	if err := database.MigrateDB(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	svc := records.New(db)
	ocrClient := ocr.NewClient(cfg.OCR.WorkerURL, cfg.OCR.AnalyzeTimeout, cfg.OCR.SettingsTimeout)
	processor := ocr.NewProcessor(ocrClient, store, svc, cfg.OCR.SendMode == config.SendModeUpload, logger.Named("ocr"))

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	r.MaxMultipartMemory = cfg.Storage.MaxUploadBytes

	handlers.RegisterRoutes(r, handlers.Deps{
		Records:        svc,
		Tokens:         auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiration),
		Store:          store,
		OCR:            processor,
		Engines:        ocrClient,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Log:            logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Env),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("ocr_worker", cfg.OCR.WorkerURL),
			zap.String("ocr_send_mode", cfg.OCR.SendMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	// OCR requests may still be waiting on the worker
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OCR.AnalyzeTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsDev() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Driver == config.StorageMinIO {
		return storage.NewMinIOClient(ctx, cfg.Storage.MinIO)
	}
	return storage.NewDiskStore(cfg.Storage.UploadDir)
}
