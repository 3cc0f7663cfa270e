package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/sync/singleflight"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
)

// OptionsConfig holds option loading limits.
type OptionsConfig struct {
	TTL     time.Duration
	Timeout time.Duration
	Prefix  string
}

// OptionsServiceOptions groups dependencies for OptionsService.
type OptionsServiceOptions struct {
	Backend core.SkillsBackend   // Required
	Cache   core.CacheRepository // Required
	Config  OptionsConfig
	Logger  *slog.Logger // Optional
}

// OptionsService loads select options from backend GET endpoints. Lists are
// cached and concurrent loads of the same source share one request.
type OptionsService struct {
	backend core.SkillsBackend
	cache   core.CacheRepository
	ks      core.Keyspace
	cfg     OptionsConfig
	group   singleflight.Group
	logger  *slog.Logger
}

// NewOptionsService constructs an OptionsService.
func NewOptionsService(opts OptionsServiceOptions) *OptionsService {
	if opts.Backend == nil || opts.Cache == nil {
		panic("OptionsService requires a backend and a cache")
	}
	cfg := opts.Config
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OptionsService{
		backend: opts.Backend,
		cache:   opts.Cache,
		ks:      core.Keyspace(cfg.Prefix + "options:"),
		cfg:     cfg,
		logger:  logger.With("component", "options_service"),
	}
}

func (s *OptionsService) key(src skill.OptionsSource) string {
	sum := sha256.Sum256([]byte(src.Endpoint + "\x00" + src.Expr))
	return s.ks.Key(hex.EncodeToString(sum[:12]))
}

// Options returns the projected option list for src.
func (s *OptionsService) Options(ctx context.Context, src skill.OptionsSource) ([]skill.Option, error) {
	key := s.key(src)
	var cached []skill.Option
	if ok, err := core.GetJSON(ctx, s.cache, key, &cached); err != nil {
		s.logger.WarnContext(ctx, "options cache read failed", "endpoint", src.Endpoint, "error", err)
	} else if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Detached so one caller going away does not fail the others sharing the load.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer cancel()

		doc, err := s.backend.FetchJSON(lctx, src.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch options %s: %w", src.Endpoint, err)
		}
		opts, err := Project(src.Expr, doc)
		if err != nil {
			return nil, err
		}
		if err := core.SetJSON(lctx, s.cache, key, opts, s.cfg.TTL); err != nil {
			s.logger.WarnContext(lctx, "options cache write failed", "endpoint", src.Endpoint, "error", err)
		}
		return opts, nil
	})
	if err != nil {
		return []skill.Option{}, err
	}
	return v.([]skill.Option), nil
}

// LoadFor loads every backend-sourced field of op. Failed sources are logged
// and left empty so the form still renders.
func (s *OptionsService) LoadFor(ctx context.Context, op *skill.Operation) skill.OptionSet {
	set := skill.OptionSet{}
	if op == nil {
		return set
	}
	for _, f := range op.Fields {
		if f.OptionsFrom == nil {
			continue
		}
		opts, err := s.Options(ctx, *f.OptionsFrom)
		if err != nil {
			s.logger.WarnContext(ctx, "options unavailable", "field", f.Name, "endpoint", f.OptionsFrom.Endpoint, "error", err)
		}
		set[f.Name] = opts
	}
	return set
}

// Project evaluates expr against doc and converts the result to options.
// Items may be objects with value/label/description keys or bare scalars.
func Project(expr string, doc any) ([]skill.Option, error) {
	v := doc
	if expr != "" {
		var err error
		if v, err = jmespath.Search(expr, doc); err != nil {
			return nil, fmt.Errorf("project options with %q: %w", expr, err)
		}
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("project options with %q: result is not a list", expr)
	}

	out := make([]skill.Option, 0, len(items))
	for _, item := range items {
		var o skill.Option
		switch t := item.(type) {
		case map[string]any:
			o.Value = scalarString(t["value"])
			o.Label = scalarString(t["label"])
			o.Description = scalarString(t["description"])
		default:
			o.Value = scalarString(t)
		}
		if o.Value == "" {
			continue
		}
		if o.Label == "" {
			o.Label = o.Value
		}
		out = append(out, o)
	}
	return out, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
