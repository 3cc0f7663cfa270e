package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
	"github.com/skilldeck/skilldeck/internal/observability/metrics"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
)

// AssistantConfig holds chat limits.
type AssistantConfig struct {
	Timeout          time.Duration
	NavigateDelay    time.Duration
	IntentTTL        time.Duration
	ConversationTTL  time.Duration
	MaxMessageLength int
	Prefix           string
}

// AssistantServiceOptions groups dependencies for AssistantService.
type AssistantServiceOptions struct {
	Backend core.SkillsBackend   // Required
	Catalog *skill.Catalog       // Required
	Cache   core.CacheRepository // Required: conversations and navigation intents
	Guard   *InflightGuard       // Required
	Config  AssistantConfig
	Metrics statsd.Sink  // Optional
	Logger  *slog.Logger // Optional
	Clock   func() time.Time
}

// AssistantService forwards chat messages to the intent parser and turns
// navigate actions into single-use navigation intents.
type AssistantService struct {
	backend core.SkillsBackend
	catalog *skill.Catalog
	cache   core.CacheRepository
	guard   *InflightGuard
	ks      core.Keyspace
	cfg     AssistantConfig
	metrics statsd.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewAssistantService constructs an AssistantService.
func NewAssistantService(opts AssistantServiceOptions) *AssistantService {
	if opts.Backend == nil || opts.Catalog == nil || opts.Cache == nil || opts.Guard == nil {
		panic("AssistantService requires a backend, catalog, cache and guard")
	}
	cfg := opts.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.NavigateDelay < 0 {
		cfg.NavigateDelay = 0
	}
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 2 * time.Minute
	}
	if cfg.ConversationTTL <= 0 {
		cfg.ConversationTTL = 24 * time.Hour
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 4000
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &AssistantService{
		backend: opts.Backend,
		catalog: opts.Catalog,
		cache:   opts.Cache,
		guard:   opts.Guard,
		ks:      core.Keyspace(cfg.Prefix + "assistant:"),
		cfg:     cfg,
		metrics: opts.Metrics,
		logger:  logger.With("component", "assistant_service"),
		now:     now,
	}
}

// NewConversationID returns a fresh conversation id.
func NewConversationID() string { return uuid.NewString() }

func (s *AssistantService) conversationKey(id string) string { return s.ks.Key("conversation", id) }
func (s *AssistantService) intentKey(token string) string { return s.ks.Key("intent", token) }

// Conversation returns the stored conversation, or a fresh one holding only
// the welcome message.
func (s *AssistantService) Conversation(ctx context.Context, id string) (*assistant.Conversation, error) {
	if id == "" {
		return nil, apperrors.ValidationField("conversation_id", "conversation id is required")
	}
	var conv assistant.Conversation
	ok, err := core.GetJSON(ctx, s.cache, s.conversationKey(id), &conv)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return assistant.NewConversation(id, s.now()), nil
	}
	return &conv, nil
}

func (s *AssistantService) save(ctx context.Context, conv *assistant.Conversation) {
	if err := core.SetJSON(ctx, s.cache, s.conversationKey(conv.ID), conv, s.cfg.ConversationTTL); err != nil {
		s.logger.WarnContext(ctx, "save conversation", "conversation", conv.ID, "error", err)
	}
}

// Send appends text to the conversation, asks the backend what the user
// wants and returns the assistant's reply. A second Send on the same
// conversation while one is pending fails with ErrConversationBusy. Backend
// failures are not errors: the reply carries the apology message instead.
// When the cache is unreachable the message is still answered, without the
// busy check and without a stored transcript.
func (s *AssistantService) Send(ctx context.Context, conversationID, text, currentPath string) (*assistant.Reply, error) {
	if conversationID == "" {
		return nil, apperrors.ValidationField("conversation_id", "conversation id is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, assistant.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxMessageLength {
		return nil, apperrors.ValidationField("message",
			fmt.Sprintf("message is longer than %d characters", s.cfg.MaxMessageLength))
	}

	lease, err := s.guard.Acquire(ctx, "chat:"+conversationID, s.cfg.Timeout+5*time.Second)
	switch {
	case err != nil:
		// Same rule as submissions: a down guard store does not stop the chat.
		s.logger.WarnContext(ctx, "conversation guard unavailable, continuing unguarded",
			"conversation", conversationID, "error", err)
	case lease == nil:
		return nil, assistant.ErrConversationBusy
	}
	bg := context.WithoutCancel(ctx)
	defer func() {
		if relErr := s.guard.Release(bg, lease); relErr != nil {
			s.logger.WarnContext(ctx, "release conversation guard", "error", relErr)
		}
	}()

	conv, err := s.Conversation(ctx, conversationID)
	if err != nil {
		s.logger.WarnContext(ctx, "load conversation, starting a fresh one",
			"conversation", conversationID, "error", err)
		conv = assistant.NewConversation(conversationID, s.now())
	}
	if conv.Busy() {
		// Left over from a process that died mid-request; the guard says nobody owns it now.
		conv.State = assistant.StateIdle
	}
	if _, err := conv.Begin(text, s.now()); err != nil {
		return nil, err
	}
	s.save(ctx, conv)

	pageContext := s.catalog.ContextFor(currentPath)
	start := s.now()
	pctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	resp, err := s.backend.ParseIntent(pctx, assistant.ParseRequest{Message: text, Context: pageContext})
	cancel()
	took := s.now().Sub(start)

	if err != nil {
		msg := conv.Fail(s.now())
		s.save(bg, conv)
		s.logger.WarnContext(ctx, "intent parse failed", "conversation", conversationID, "error", err)
		metrics.EmitAssistant(s.metrics, metrics.AssistantMetric{Result: metrics.ResultError, Duration: took, Err: err})
		return &assistant.Reply{Message: msg, Failed: true, Context: pageContext}, nil
	}

	msg := assistant.Message{Role: assistant.RoleAssistant, Content: resp.Reply(), Action: resp.Action, At: s.now()}
	nav := s.navigation(bg, resp.Action)
	conv.Complete(msg, nav != nil)
	s.save(bg, conv)

	action := ""
	if resp.Action != nil {
		action = string(resp.Action.Type)
	}
	metrics.EmitAssistant(s.metrics, metrics.AssistantMetric{
		Intent: resp.Intent, Action: action, Result: metrics.ResultSuccess, Duration: took,
	})

	return &assistant.Reply{
		Message:    msg,
		Intent:     resp.Intent,
		Confidence: resp.Confidence,
		Navigation: nav,
		Context:    pageContext,
		Parsed:     resp,
	}, nil
}

// navigation plans the page change for a navigate action. Targets outside
// the catalog are dropped. Pre-fill travels in a stored intent whose token
// is the only thing placed in the URL.
func (s *AssistantService) navigation(ctx context.Context, action *assistant.Action) *assistant.Navigation {
	if action == nil || !action.IsNavigate() {
		return nil
	}
	sk, ok := s.catalog.ResolveTarget(action.Target)
	if !ok {
		s.logger.InfoContext(ctx, "ignoring navigate action to unknown target", "target", action.Target)
		return nil
	}
	if len(action.PreFill) == 0 {
		return &assistant.Navigation{
			URL:     sk.Route(),
			SkillID: sk.ID,
			Delay:   s.cfg.NavigateDelay,
			DelayMS: s.cfg.NavigateDelay.Milliseconds(),
		}
	}

	now := s.now()
	intent := &assistant.NavigationIntent{
		Token:     uuid.NewString(),
		Target:    action.Target,
		SkillID:   sk.ID,
		PreFill:   action.PreFill,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.IntentTTL),
	}
	if err := core.SetJSON(ctx, s.cache, s.intentKey(intent.Token), intent, s.cfg.IntentTTL); err != nil {
		// Still navigate; the page just opens without pre-fill.
		s.logger.WarnContext(ctx, "store navigation intent", "skill", sk.ID, "error", err)
		return &assistant.Navigation{URL: sk.Route(), SkillID: sk.ID, Delay: s.cfg.NavigateDelay, DelayMS: s.cfg.NavigateDelay.Milliseconds()}
	}
	return assistant.NewNavigation(intent, sk.Route(), s.cfg.NavigateDelay)
}

// ConsumeIntent returns the intent stored under token and deletes it.
func (s *AssistantService) ConsumeIntent(ctx context.Context, token string) (*assistant.NavigationIntent, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, apperrors.NotFound("navigation intent not found")
	}
	var intent assistant.NavigationIntent
	ok, err := core.TakeJSON(ctx, s.cache, s.intentKey(token), &intent)
	if err != nil {
		return nil, fmt.Errorf("consume intent: %w", err)
	}
	if !ok || intent.Expired(s.now()) {
		return nil, apperrors.NotFound("navigation intent not found or expired")
	}
	return &intent, nil
}

// QuickActions returns the backend's quick actions, or the built-in set
// when the backend has none or cannot be reached.
func (s *AssistantService) QuickActions(ctx context.Context) []assistant.QuickAction {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	actions, err := s.backend.QuickActions(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "quick actions unavailable, using defaults", "error", err)
		return assistant.DefaultQuickActions()
	}
	if len(actions) == 0 {
		return assistant.DefaultQuickActions()
	}
	return actions
}

// QuickAction finds a quick action by id.
func (s *AssistantService) QuickAction(ctx context.Context, id string) (assistant.QuickAction, bool) {
	for _, a := range s.QuickActions(ctx) {
		if a.ID == id {
			return a, true
		}
	}
	return assistant.QuickAction{}, false
}

// IsBusy reports whether err means the conversation already has a pending message.
func IsBusy(err error) bool { return errors.Is(err, assistant.ErrConversationBusy) }
