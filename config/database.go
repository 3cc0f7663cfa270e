package config

import "time"

// DBConfig contains PostgreSQL configuration for the submission history store.
type DBConfig struct {
	// Enabled turns on submission history. When false the dashboard runs without Postgres.
	Enabled  bool   `env:"ENABLED"                 envDefault:"false"`
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"skilldeck"`
	Password string `env:"PASSWORD"                envDefault:"skilldeck"`
	Name     string `env:"NAME"                    envDefault:"skilldeck"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	// Enabled selects Redis for downloads, intents, option caching and in-flight guards.
	// When false those concerns fall back to process memory (single replica only).
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// CacheConfig contains cache TTLs shared by the Redis and in-memory stores.
type CacheConfig struct {
	// KeyPrefix namespaces every key written by the dashboard.
	KeyPrefix string `env:"CACHE_KEY_PREFIX" envDefault:"skilldeck:"`

	// OptionsTTL is how long backend option lists (themes) are cached.
	OptionsTTL time.Duration `env:"CACHE_OPTIONS_TTL" envDefault:"5m"`

	// SweepInterval is how often the in-memory store drops expired entries.
	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"1m"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.OptionsTTL < time.Second {
		c.OptionsTTL = time.Second
	}
	if c.SweepInterval < time.Second {
		c.SweepInterval = time.Second
	}
}
