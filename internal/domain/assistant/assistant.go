// Package assistant models the chat assistant: the messages exchanged with
// the intent parser, the actions it proposes and the navigation hand-off to
// tool pages.
package assistant

import (
	"strings"
	"time"
)

const (
	// DefaultReply is shown when the parser returns no suggestion.
	DefaultReply = "I can help with that!"
	// ApologyMessage is shown when the parser cannot be reached or fails.
	ApologyMessage = "❌ Sorry, I encountered an error. Please check that the skills backend is running and try again."
	// WelcomeMessage opens every conversation.
	WelcomeMessage = "👋 Hi! I can help you create documents, spreadsheets, presentations, and more. Just tell me what you need in plain English!"
	// DefaultNavigateDelay is the pause between showing a reply and following its navigate action.
	DefaultNavigateDelay = 800 * time.Millisecond
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation transcript.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Action  *Action   `json:"action,omitempty"`
	At      time.Time `json:"at"`
}

// ActionType is the kind of follow-up the parser proposes.
type ActionType string

const (
	ActionNavigate  ActionType = "navigate"
	ActionMultiStep ActionType = "multi_step"
	ActionShowHelp  ActionType = "show_help"
)

// Step is one stage of a multi_step action.
type Step struct {
	Action     string         `json:"action"`
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Action is a structured follow-up attached to a parser reply. Only navigate
// actions are executed; the others are rendered as information.
type Action struct {
	Type    ActionType     `json:"type"`
	Target  string         `json:"target,omitempty"`
	PreFill map[string]any `json:"pre_fill,omitempty"`
	Steps   []Step         `json:"steps,omitempty"`
	Message string         `json:"message,omitempty"`
}

// IsNavigate reports whether a is a navigate action with a target.
func (a *Action) IsNavigate() bool {
	return a != nil && a.Type == ActionNavigate && strings.TrimSpace(a.Target) != ""
}

// ParseRequest is sent to the intent parser.
type ParseRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// ParseResponse is the intent parser's answer.
type ParseResponse struct {
	Intent     string         `json:"intent"`
	Parameters map[string]any `json:"parameters"`
	Confidence float64        `json:"confidence"`
	Suggestion string         `json:"suggestion"`
	Action     *Action        `json:"action,omitempty"`
}

// Reply returns the text shown for the response.
func (r *ParseResponse) Reply() string {
	if r == nil || strings.TrimSpace(r.Suggestion) == "" {
		return DefaultReply
	}
	return r.Suggestion
}

// QuickAction is a one-click prompt shown in the assistant panel.
type QuickAction struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// DefaultQuickActions is used when the backend does not provide a list.
func DefaultQuickActions() []QuickAction {
	return []QuickAction{
		{
			ID:          "quick-report",
			Icon:        "📄",
			Label:       "Quick Report",
			Description: "Create a professional report in seconds",
			Prompt:      "Create a professional report titled 'Q4 2024 Analysis'",
		},
		{
			ID:          "quick-budget",
			Icon:        "💰",
			Label:       "Budget Template",
			Description: "2025 budget tracker with formulas",
			Prompt:      "Create a budget for 2025 with categories: Salaries, Marketing, Operations",
		},
		{
			ID:          "quick-pitch",
			Icon:        "🚀",
			Label:       "Pitch Deck",
			Description: "Investor presentation template",
			Prompt:      "Create a pitch deck presentation for a SaaS startup",
		},
		{
			ID:          "quick-memo",
			Icon:        "📝",
			Label:       "Quick Memo",
			Description: "Business memo format",
			Prompt:      "Create a memo about the new remote work policy",
		},
	}
}
