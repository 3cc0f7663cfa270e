package config

import "time"

// AssistantConfig configures the chat assistant.
type AssistantConfig struct {
	// Timeout bounds one intent-parse round trip.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// NavigateDelay is the pause between showing the reply and navigating.
	NavigateDelay time.Duration `env:"NAVIGATE_DELAY" envDefault:"800ms"`

	// IntentTTL is how long a navigation intent can be claimed by the destination page.
	IntentTTL time.Duration `env:"INTENT_TTL" envDefault:"2m"`

	// ConversationTTL is how long an idle chat transcript is kept.
	ConversationTTL time.Duration `env:"CONVERSATION_TTL" envDefault:"24h"`

	// MaxMessageLength rejects oversize chat input.
	MaxMessageLength int `env:"MAX_MESSAGE_LENGTH" envDefault:"4000"`
}

// Sanitize applies guardrails to assistant settings.
func (a *AssistantConfig) Sanitize() {
	if a.Timeout < time.Second {
		a.Timeout = time.Second
	}
	if a.NavigateDelay < 0 {
		a.NavigateDelay = 0
	}
	if a.IntentTTL < 10*time.Second {
		a.IntentTTL = 10 * time.Second
	}
	if a.ConversationTTL < time.Minute {
		a.ConversationTTL = time.Minute
	}
	if a.MaxMessageLength < 1 {
		a.MaxMessageLength = 4000
	}
}
