package assistant

import (
	"net/url"
	"time"
)

// IntentParam is the query parameter that carries a navigation intent token.
const IntentParam = "intent"

// NavigationIntent hands pre-fill parameters from the assistant to a tool
// page. It is stored server side under Token and consumed once.
type NavigationIntent struct {
	Token     string         `json:"token"`
	Target    string         `json:"target"`
	SkillID   string         `json:"skill_id"`
	PreFill   map[string]any `json:"pre_fill,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the intent is no longer usable at now.
func (i *NavigationIntent) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// URL returns route with the intent token appended.
func (i *NavigationIntent) URL(route string) string {
	q := url.Values{}
	q.Set(IntentParam, i.Token)
	return route + "?" + q.Encode()
}

// Navigation tells a client where to go after showing a reply.
type Navigation struct {
	URL     string        `json:"url"`
	SkillID string        `json:"skill_id"`
	Delay   time.Duration `json:"-"`
	DelayMS int64         `json:"delay_ms"`
}

// NewNavigation builds the plan for intent landing on route.
func NewNavigation(intent *NavigationIntent, route string, delay time.Duration) *Navigation {
	return &Navigation{
		URL:     intent.URL(route),
		SkillID: intent.SkillID,
		Delay:   delay,
		DelayMS: delay.Milliseconds(),
	}
}

// Reply is the outcome of sending one chat message.
type Reply struct {
	Message    Message        `json:"message"`
	Intent     string         `json:"intent,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Navigation *Navigation    `json:"navigation,omitempty"`
	Failed     bool           `json:"failed,omitempty"`
	Context    string         `json:"context"`
	Parsed     *ParseResponse `json:"-"`
}
