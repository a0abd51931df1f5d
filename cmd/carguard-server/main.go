package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/engine"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/match"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/metrics"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/vault"
	"github.com/BrandonDHaskell/Carguard/server/internal/config"
	"github.com/BrandonDHaskell/Carguard/server/internal/httpapi"
	"github.com/BrandonDHaskell/Carguard/server/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("carguard-server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Encryption at rest
	if cfg.Secret == "" {
		return vault.ErrNoSecret
	}
	key, err := vault.DeriveKey(cfg.Secret, cfg.KeySalt)
	if err != nil {
		return err
	}
	sealer, err := vault.NewSealer(key)
	if err != nil {
		return err
	}

	// Persistence
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	policy := vault.CorruptAsEmpty
	if cfg.StrictCorruption {
		policy = vault.CorruptIsError
	}
	v := vault.New(backend, sealer, vault.Options{Corruption: policy, Logger: logger})

	// Extraction engine. Availability is decided once, here.
	var extractor engine.Extractor
	engineAvailable := false
	if cfg.EngineAddr != "" {
		grpcEngine, err := engine.Dial(cfg.EngineAddr, logger)
		if err != nil {
			return err
		}
		defer func() { _ = grpcEngine.Close() }()

		probeCtx, cancel := context.WithTimeout(ctx, cfg.EngineProbeTimeout)
		engineAvailable = grpcEngine.Probe(probeCtx)
		cancel()

		if engineAvailable {
			extractor = engine.WithTimeout(grpcEngine, cfg.EngineTimeout)
		} else {
			logger.Warn("extraction engine not serving, descriptor matching disabled", zap.String("addr", cfg.EngineAddr))
		}
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Services
	gallery := service.NewGallery(v, cfg.DescriptorDim)
	configSvc := service.NewConfigService(v, version, logger)
	audit := service.NewAuditLog(backend, sealer, logger)
	matcher := match.New(match.Config{
		EngineAvailable: engineAvailable,
		FallbackEnabled: cfg.FallbackMatching,
		ImageSide:       cfg.ImageSide,
	}, service.ReferenceImages{Vault: v}, nil, logger)

	accessSvc := service.NewAccessService(service.AccessDeps{
		Gallery:        gallery,
		Config:         configSvc,
		Matcher:        matcher,
		Extractor:      extractor,
		Audit:          audit,
		Metrics:        m,
		Logger:         logger,
		DescriptorDim:  cfg.DescriptorDim,
		MaxImagePixels: cfg.MaxImagePixels,
	})
	enrollSvc := service.NewEnrollmentService(service.EnrollmentDeps{
		Gallery:         gallery,
		Config:          configSvc,
		Vault:           v,
		Extractor:       extractor,
		EngineAvailable: engineAvailable,
		Logger:          logger,
		MaxImagePixels:  cfg.MaxImagePixels,
	})

	// Install the default config up front so the PIN warning shows at boot.
	if _, err := configSvc.Get(ctx); err != nil {
		return err
	}

	if cfg.SeedDev {
		n, err := service.SeedDev(ctx, gallery, service.SeedDevOptions{})
		if err != nil {
			return err
		}
		logger.Info("dev seed applied", zap.Int("identities_added", n))
	}

	monitor := service.NewIntegrityMonitor(audit,
		time.Duration(cfg.AuditVerifyIntervalMinutes)*time.Minute, m, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:          logger,
		Addr:            cfg.HTTPAddr,
		Access:          accessSvc,
		Enrollment:      enrollSvc,
		Gallery:         gallery,
		Config:          configSvc,
		Audit:           audit,
		Stats:           service.NewStatsService(gallery, audit),
		Gatherer:        reg,
		Backend:         cfg.Backend,
		EngineAvailable: engineAvailable,
		FallbackEnabled: cfg.FallbackMatching,
		MaxUploadBytes:  cfg.MaxUploadBytes,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("backend", cfg.Backend),
			zap.Bool("engine_available", engineAvailable),
			zap.Bool("fallback_enabled", cfg.FallbackMatching),
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
