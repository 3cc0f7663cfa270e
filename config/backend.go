package config

import (
	"strings"
	"time"
)

// BackendConfig configures the client for the remote skills backend.
type BackendConfig struct {
	// BaseURL is the root of the skills API; endpoints in the catalog are appended to it.
	BaseURL string `env:"URL" envDefault:"http://localhost:8000"`

	// UserAgent is sent with every backend request.
	UserAgent string `env:"USER_AGENT" envDefault:"skilldeck/1.0"`

	// ErrorExpressions are JMESPath expressions tried in order to pull a message
	// out of a non-2xx JSON body.
	ErrorExpressions []string `env:"ERROR_EXPRESSIONS" envSeparator:";" envDefault:"detail;error.detail;error.message;error;message"`

	IntentPath       string `env:"INTENT_PATH"        envDefault:"/api/ai/parse"`
	QuickActionsPath string `env:"QUICK_ACTIONS_PATH" envDefault:"/api/ai/quick-actions"`
	HealthPath       string `env:"HEALTH_PATH"        envDefault:"/health"`

	// MaxResponseBytes caps the size of a generated file read into memory.
	MaxResponseBytes int64 `env:"MAX_RESPONSE_BYTES" envDefault:"268435456"`

	// Auth configures optional service-to-service credentials.
	Auth BackendAuthConfig `envPrefix:"AUTH_"`
}

// BackendAuthConfig holds OAuth2 client-credentials settings. TokenURL wins over
// Issuer; when only Issuer is set the token endpoint is discovered via OIDC.
type BackendAuthConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	TokenURL     string   `env:"TOKEN_URL"`
	Issuer       string   `env:"ISSUER"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// Enabled reports whether enough settings exist to request tokens.
func (a BackendAuthConfig) Enabled() bool {
	return a.ClientID != "" && a.ClientSecret != "" && (a.TokenURL != "" || a.Issuer != "")
}

// Sanitize normalises backend client settings.
func (b *BackendConfig) Sanitize() {
	b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
	if b.BaseURL == "" {
		b.BaseURL = "http://localhost:8000"
	}
	exprs := b.ErrorExpressions[:0]
	for _, e := range b.ErrorExpressions {
		if e = strings.TrimSpace(e); e != "" {
			exprs = append(exprs, e)
		}
	}
	b.ErrorExpressions = exprs
	if b.MaxResponseBytes < 1<<20 {
		b.MaxResponseBytes = 1 << 20
	}
	b.Auth.TokenURL = strings.TrimSpace(b.Auth.TokenURL)
	b.Auth.Issuer = strings.TrimSpace(b.Auth.Issuer)
}

// SubmissionConfig configures the submission controller and result hand-off.
type SubmissionConfig struct {
	// Timeout is the deadline applied to each backend job request.
	Timeout time.Duration `env:"SUBMISSION_TIMEOUT" envDefault:"2m"`

	// GuardGrace is added to Timeout when computing the in-flight guard TTL so a
	// crashed replica never pins a form forever.
	GuardGrace time.Duration `env:"SUBMISSION_GUARD_GRACE" envDefault:"15s"`

	// DownloadTTL is how long a produced file stays claimable.
	DownloadTTL time.Duration `env:"SUBMISSION_DOWNLOAD_TTL" envDefault:"10m"`

	// OptionsTimeout bounds GET requests for option lists.
	OptionsTimeout time.Duration `env:"SUBMISSION_OPTIONS_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to submission settings.
func (s *SubmissionConfig) Sanitize() {
	if s.Timeout < time.Second {
		s.Timeout = time.Second
	}
	if s.GuardGrace < 0 {
		s.GuardGrace = 0
	}
	if s.DownloadTTL < 10*time.Second {
		s.DownloadTTL = 10 * time.Second
	}
	if s.OptionsTimeout < time.Second {
		s.OptionsTimeout = time.Second
	}
}

// GuardTTL is the lifetime of a form instance's in-flight marker.
func (s SubmissionConfig) GuardTTL() time.Duration {
	return s.Timeout + s.GuardGrace
}
