package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ServiceMode names a long-running process the binary can host.
type ServiceMode string

const (
	// ServiceModeHTTP serves the dashboard and its JSON API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReaper prunes submission history and expired store entries.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes lists the modes in start order.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeReaper}
}

// Valid reports whether m is a known mode.
func (m ServiceMode) Valid() bool {
	return slices.Contains(ValidServiceModes(), m)
}

// ParseServices parses a comma-separated SERVICES value such as
// "http,reaper". Blank entries are ignored; unknown names are an error.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)
	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if mode := ServiceMode(name); mode.Valid() {
			services[mode] = true
			continue
		}
		valid := make([]string, 0, len(ValidServiceModes()))
		for _, m := range ValidServiceModes() {
			valid = append(valid, string(m))
		}
		return nil, fmt.Errorf("invalid service name: %q (valid options: %s)", name, strings.Join(valid, ", "))
	}
	if len(services) == 0 {
		return nil, errors.New("at least one service must be specified")
	}
	return services, nil
}

// ReaperConfig contains janitor configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// HistoryMaxAge is the maximum age for submission history rows before deletion.
	HistoryMaxAge time.Duration `env:"REAPER_HISTORY_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows deleted per statement.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	r.Interval = max(r.Interval, time.Minute)
	r.HistoryMaxAge = max(r.HistoryMaxAge, time.Hour)
	r.BatchSize = min(max(r.BatchSize, 1), 10000)
}
