package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/api"
	"github.com/imr/Electric8/internal/catalog"
	"github.com/imr/Electric8/internal/config"
	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/rules"
	"github.com/imr/Electric8/internal/schema"
	"github.com/imr/Electric8/internal/session"
	"github.com/imr/Electric8/internal/storage"
	"github.com/imr/Electric8/internal/tech"
	"github.com/imr/Electric8/internal/techxml"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to Electric8.config (default: next to the executable)")
	flag.Parse()

	if *configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "Electric8.config")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string, logger *slog.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	cat, err := catalog.Open(cfg.Storage.CatalogPath, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	registry := rules.NewRegistry(cfg.Storage.RulesDirectory, logger)
	if err := registry.Load(); err != nil {
		logger.Warn("failed to load rule tables", "error", err)
	}

	var schemas *schema.Cache
	var opts []techxml.Option
	if cfg.Decoding.ValidateSchema {
		schemas = schema.Default()
		opts = append(opts, techxml.WithSchemaCache(schemas))
	} else {
		opts = append(opts, techxml.WithoutValidation())
	}
	opts = append(opts, techxml.WithLogger(logger))

	loader := techxml.NewLoader(nil, logger, opts...)
	loader.Client.Timeout = time.Duration(cfg.Decoding.FetchTimeoutSeconds) * time.Second

	sessionMgr := session.NewManager(loader, logger,
		session.WithCache(session.NewDecodedCache(cfg.Decoding.DecodedCacheSize)),
		session.WithLimits(cfg.Decoding.MaxSessions, time.Duration(cfg.Decoding.SessionTimeoutMinutes)*time.Minute),
		session.WithCompletionHook(func(ctx context.Context, s models.DecodeSession, t *tech.Technology) error {
			if err := cat.Index(ctx, s.FileID, t); err != nil {
				return err
			}
			return fileStore.SetStatus(s.FileID, models.FileStatusDecoded)
		}),
		session.WithFailureHook(func(ctx context.Context, s models.DecodeSession) {
			if err := fileStore.SetStatus(s.FileID, models.FileStatusError); err != nil {
				logger.Warn("failed to update file status", "id", s.FileID, "error", err)
			}
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Decoding.CleanupIntervalMinutes > 0 {
		go sessionMgr.RunCleanup(ctx, time.Duration(cfg.Decoding.CleanupIntervalMinutes)*time.Minute)
	}

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		Gzip:           cfg.Decoding.EnableCompression,
		GzipLevel:      cfg.Decoding.CompressionLevel,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:      fileStore,
		SessionMgr: sessionMgr,
		Catalog:    cat,
		Rules:      registry,
		Schemas:    schemas,
		Policy: api.FilePolicy{
			AllowedTypes: api.ParseFileTypes(cfg.Security.AllowedFileTypes),
			AllowDelete:  cfg.Security.AllowFileDeletion,
		},
		Logger:  logger,
		Version: Version,
	}))

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	validation := "enabled"
	if schemas == nil {
		validation = "disabled"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Electric Technology Service                     ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Validation: %-45s║\n", validation)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	errc := make(chan error, 1)
	go func() {
		errc <- e.StartServer(s)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
