// Package main is the entry point for the site server.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vyrodovalexey/safehome-site/internal/auth"
	"github.com/vyrodovalexey/safehome-site/internal/config"
	"github.com/vyrodovalexey/safehome-site/internal/mailer"
	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/server"
	"github.com/vyrodovalexey/safehome-site/internal/session"
	"github.com/vyrodovalexey/safehome-site/internal/store"
	"github.com/vyrodovalexey/safehome-site/internal/view"
)

// Log rotation settings of the optional log file.
const (
	logMaxSizeMB  = 64
	logMaxBackups = 7
	logMaxAgeDays = 7
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("media_backend", cfg.MediaBackend),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Bool("smtp_enabled", cfg.SMTPHost != ""),
	)

	ctx := context.Background()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize components", zap.Error(err))
		return 1
	}
	defer cleanup()

	srv := server.New(cfg, logger, deps)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Graceful shutdown
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// initLogger initializes a zap logger with the specified log level. When
// logFile is set, entries are also written to a rotated file.
func initLogger(level, logFile string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	if logFile == "" {
		return logger, nil
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
			Compress:   true,
		}),
		zapConfig.Level,
	)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

// buildDeps opens every backend named by the configuration. The returned
// cleanup closes them.
func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (server.Deps, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("failed to close component", zap.Error(err))
			}
		}
	}
	fail := func(err error) (server.Deps, func(), error) {
		cleanup()
		return server.Deps{}, func() {}, err
	}

	records, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fail(fmt.Errorf("opening record store: %w", err))
	}
	closers = append(closers, records.Close)

	storage, disk, err := openMediaStorage(cfg)
	if err != nil {
		return fail(err)
	}

	creds, err := auth.NewCredentials(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		return fail(fmt.Errorf("creating admin credentials: %w", err))
	}

	backend, err := session.OpenBackend(cfg.SessionBackend, cfg.SessionFile)
	if err != nil {
		return fail(fmt.Errorf("opening session backend: %w", err))
	}
	closers = append(closers, backend.Close)

	if cfg.SessionSecret == "" {
		logger.Warn("no session secret configured, sessions end on restart",
			zap.String("variable", config.EnvSessionSecret),
		)
	}
	sessionStore := session.NewStore(backend, sessionKeys(cfg.SessionSecret)...)
	sessions := session.NewManager(sessionStore, creds, cfg.SessionTTL, logger)

	purger, err := session.NewPurger(sessionStore, cfg.SessionPurge, logger)
	if err != nil {
		return fail(err)
	}

	renderer, err := view.New(view.DefaultSiteCopy())
	if err != nil {
		return fail(fmt.Errorf("loading templates: %w", err))
	}

	contact := mailer.New(cfg.Mailer(), logger)
	if !contact.Enabled() {
		logger.Warn("SMTP not configured, contact messages cannot be delivered",
			zap.String("variable", config.EnvSMTPHost),
		)
	}

	return server.Deps{
		Store:       records,
		Ingestor:    media.NewIngestor(storage, cfg.MediaMaxBytes, logger),
		Renderer:    renderer,
		Sessions:    sessions,
		Credentials: creds,
		Contact:     contact,
		Disk:        disk,
		Purger:      purger,
	}, cleanup, nil
}

// openMediaStorage builds the configured media backend. The second result
// is non-nil for the disk backend.
func openMediaStorage(cfg *config.Config) (media.Storage, *media.DiskStorage, error) {
	switch cfg.MediaBackend {
	case media.BackendDisk:
		disk, err := media.NewDiskStorage(cfg.UploadDir)
		if err != nil {
			return nil, nil, err
		}
		return disk, disk, nil
	case media.BackendCloudinary:
		remote, err := media.NewCloudinaryStorage(cfg.Cloudinary())
		if err != nil {
			return nil, nil, err
		}
		return remote, nil, nil
	default:
		return nil, nil, errors.New("unknown media backend: " + cfg.MediaBackend)
	}
}

// sessionKeys derives the cookie signing and encryption keys from secret,
// or generates random ones when no secret is configured.
func sessionKeys(secret string) [][]byte {
	if secret == "" {
		return [][]byte{securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)}
	}
	hashKey := sha256.Sum256([]byte("sign:" + secret))
	blockKey := sha256.Sum256([]byte("encrypt:" + secret))
	return [][]byte{hashKey[:], blockKey[:]}
}
