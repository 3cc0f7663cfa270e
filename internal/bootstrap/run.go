package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skilldeck/skilldeck/config"
	"github.com/skilldeck/skilldeck/internal/adapters/reaper"
)

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// backgroundService describes a startable component. A nil start means the
// component has nothing to do with the current configuration.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func newHTTPBackgroundService(cfg *ServiceOrchestrationConfig, logger *slog.Logger) backgroundService {
	return backgroundService{
		mode: config.ServiceModeHTTP,
		name: "http server",
		start: func(ctx context.Context) error {
			server := NewHTTPServer(&HTTPServerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})
			return ServeHTTP(ctx, server, logger)
		},
	}
}

func newReaperBackgroundService(cfg *ServiceOrchestrationConfig, logger *slog.Logger) backgroundService {
	svc := backgroundService{mode: config.ServiceModeReaper, name: "reaper"}

	opts := reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config.Reaper,
		Logger:  logger,
		Metrics: cfg.Services.Observability.Sink(),
	}
	// Only an in-memory store needs sweeping; leave Store a nil interface
	// otherwise.
	if cfg.Services.MemoryStore != nil {
		opts.Store = cfg.Services.MemoryStore
	}
	if opts.DB == nil && opts.Store == nil {
		return svc
	}
	svc.start = func(ctx context.Context) error {
		runner, err := reaper.NewRunner(opts)
		if err != nil {
			return err
		}
		return runner.Run(ctx)
	}
	return svc
}

// newSweeperBackgroundService keeps the in-memory store bounded when the
// reaper is not enabled in this process.
func newSweeperBackgroundService(cfg *ServiceOrchestrationConfig, logger *slog.Logger, enabled map[config.ServiceMode]bool) backgroundService {
	svc := backgroundService{mode: config.ServiceModeHTTP, name: "memory store sweeper"}
	mem := cfg.Services.MemoryStore
	if mem == nil || enabled[config.ServiceModeReaper] {
		return svc
	}
	interval := cfg.Config.Cache.SweepInterval
	svc.start = func(ctx context.Context) error {
		mem.Run(ctx, interval, logger)
		return nil
	}
	return svc
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger, enabled map[config.ServiceMode]bool) []backgroundService {
	all := []backgroundService{
		newHTTPBackgroundService(cfg, logger),
		newReaperBackgroundService(cfg, logger),
	}
	if sweeper := newSweeperBackgroundService(cfg, logger, enabled); sweeper.start != nil {
		all = append(all, sweeper)
	}
	active := make([]backgroundService, 0, len(all))
	for _, svc := range all {
		if !enabled[svc.mode] {
			continue
		}
		if svc.start == nil {
			logger.Warn("service has nothing to do; skipping", "service", svc.name)
			continue
		}
		active = append(active, svc)
	}
	return active
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or one of them fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config with AppConfig is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunServices(ctx, cfg)
}

// RunServices runs every enabled service until ctx is cancelled. The first
// service error cancels the rest.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	services := buildBackgroundServices(cfg, logger, enabled)
	if len(services) == 0 {
		return errors.New("no runnable services")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", svc.name, "mode", svc.mode)
			if err := svc.start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.InfoContext(gctx, svc.name+" stopped")
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error("service error", "error", err)
	} else {
		logger.Info("services stopped")
	}
	return err
}
