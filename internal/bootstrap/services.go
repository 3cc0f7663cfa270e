package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	skilldeck "github.com/skilldeck/skilldeck"
	"github.com/skilldeck/skilldeck/config"
	"github.com/skilldeck/skilldeck/internal/adapters/backend"
	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
	"github.com/skilldeck/skilldeck/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Catalog     *skill.Catalog
	Backend     *backend.Client
	Cache       core.CacheRepository
	Guard       *service.InflightGuard
	Downloads   *service.DownloadStore
	Results     *service.ResultHandler
	Options     *service.OptionsService
	Submissions *service.SubmissionService
	Assistant   *service.AssistantService
	History     *service.HistoryService // nil when DB_ENABLED=false
	// MemoryStore is set when Redis is disabled; the reaper sweeps it.
	MemoryStore   *data.MemoryCacheRepo
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Sink returns the metrics sink as an interface, nil when metrics are off.
//
//nolint:ireturn // a typed nil must not leak into the Sink interface.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB               // Optional: enables history
	RedisClient redis.UniversalClient // Optional: shared store instead of memory
	Logger      *slog.Logger
	// HTTPClient overrides the client used for backend calls and token requests.
	HTTPClient *http.Client
}

// buildObservability configures the metrics adapter. A dial failure is logged
// and metrics are dropped rather than failing startup.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	var sink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			sink = client
		}
	}
	return ObservabilityContainer{MetricsSink: sink, MetricsConfig: cfg.Metrics}
}

// LoadCatalog reads the skill catalog from path, or the embedded default
// when path is empty.
func LoadCatalog(path string) (*skill.Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return skill.Load(skilldeck.CatalogFS, skilldeck.CatalogFile)
	}
	cat, err := skill.Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// buildCache picks Redis when a client is configured and process memory
// otherwise.
func buildCache(client redis.UniversalClient, logger *slog.Logger) (core.CacheRepository, *data.MemoryCacheRepo) {
	if client != nil {
		return data.NewRedisCacheRepo(client), nil
	}
	logger.Warn("redis disabled; downloads, intents and guards are local to this process")
	mem := data.NewMemoryCacheRepo(nil)
	return mem, mem
}

func newBackendClient(ctx context.Context, cfg config.BackendConfig, hc *http.Client) (*backend.Client, error) {
	bc := backend.Config{
		BaseURL:          cfg.BaseURL,
		UserAgent:        cfg.UserAgent,
		ErrorExpressions: cfg.ErrorExpressions,
		IntentPath:       cfg.IntentPath,
		QuickActionsPath: cfg.QuickActionsPath,
		HealthPath:       cfg.HealthPath,
		MaxResponseBytes: cfg.MaxResponseBytes,
		HTTPClient:       hc,
	}
	if cfg.Auth.Enabled() {
		ts, err := backend.NewTokenSource(ctx, backend.AuthConfig{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
			Issuer:       cfg.Auth.Issuer,
			Scopes:       cfg.Auth.Scopes,
		}, hc)
		if err != nil {
			return nil, fmt.Errorf("backend credentials: %w", err)
		}
		bc.TokenSource = ts
	}
	client, err := backend.NewClient(bc)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	return client, nil
}

func newHistoryService(db *sql.DB, logger *slog.Logger) *service.HistoryService {
	if db == nil {
		return nil
	}
	repo := data.NewSubmissionRepo(db, data.SubmissionRepoConfig{Logger: logger})
	return service.NewHistoryService(service.HistoryServiceOptions{Repo: repo, Logger: logger})
}

// NewServices wires every service from configuration and the optional
// storage connections.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return ServiceContainer{}, err
	}
	client, err := newBackendClient(ctx, cfg.Backend, deps.HTTPClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	obs := buildObservability(logger, cfg.Observability)
	cache, mem := buildCache(deps.RedisClient, logger)
	prefix := cfg.Cache.KeyPrefix
	guard := service.NewInflightGuard(cache, prefix)
	downloads := service.NewDownloadStore(cache, prefix, cfg.Submissions.DownloadTTL)
	history := newHistoryService(deps.DB, logger)

	return ServiceContainer{
		Catalog:   catalog,
		Backend:   client,
		Cache:     cache,
		Guard:     guard,
		Downloads: downloads,
		Results:   service.NewResultHandler(downloads, logger),
		Options: service.NewOptionsService(service.OptionsServiceOptions{
			Backend: client,
			Cache:   cache,
			Config: service.OptionsConfig{
				TTL:     cfg.Cache.OptionsTTL,
				Timeout: cfg.Submissions.OptionsTimeout,
				Prefix:  prefix,
			},
			Logger: logger,
		}),
		Submissions: service.NewSubmissionService(service.SubmissionServiceOptions{
			Backend: client,
			Guard:   guard,
			Config: service.SubmissionConfig{
				Timeout:  cfg.Submissions.Timeout,
				GuardTTL: cfg.Submissions.GuardTTL(),
			},
			History: history,
			Metrics: obs.Sink(),
			Logger:  logger,
		}),
		Assistant: service.NewAssistantService(service.AssistantServiceOptions{
			Backend: client,
			Catalog: catalog,
			Cache:   cache,
			Guard:   guard,
			Config: service.AssistantConfig{
				Timeout:          cfg.Assistant.Timeout,
				NavigateDelay:    cfg.Assistant.NavigateDelay,
				IntentTTL:        cfg.Assistant.IntentTTL,
				ConversationTTL:  cfg.Assistant.ConversationTTL,
				MaxMessageLength: cfg.Assistant.MaxMessageLength,
				Prefix:           prefix,
			},
			Metrics: obs.Sink(),
			Logger:  logger,
		}),
		History:       history,
		MemoryStore:   mem,
		Observability: obs,
	}, nil
}

// Close releases resources owned by the container.
func (c ServiceContainer) Close() error {
	if c.Observability.MetricsSink != nil {
		return c.Observability.MetricsSink.Close()
	}
	return nil
}
