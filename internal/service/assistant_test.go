package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/data"
	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
	"github.com/skilldeck/skilldeck/internal/mocks"
	"github.com/skilldeck/skilldeck/internal/observability/metrics"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
	"github.com/skilldeck/skilldeck/internal/testutil"
)

type assistantFixture struct {
	backend *mocks.MockSkillsBackend
	cache   *data.MemoryCacheRepo
	clock   *data.FixedTimeProvider
	metrics *statsd.Recorder
	catalog *skill.Catalog
	svc     *AssistantService
}

func newAssistantFixture(t *testing.T) *assistantFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	clock := testClock()
	cache := data.NewMemoryCacheRepo(clock)
	f := &assistantFixture{
		backend: mocks.NewMockSkillsBackend(ctrl),
		cache:   cache,
		clock:   clock,
		metrics: &statsd.Recorder{},
		catalog: testutil.LoadCatalog(t),
	}
	f.svc = NewAssistantService(AssistantServiceOptions{
		Backend: f.backend,
		Catalog: f.catalog,
		Cache:   cache,
		Guard:   NewInflightGuard(cache, testPrefix),
		Config: AssistantConfig{
			Timeout:       time.Second,
			NavigateDelay: assistant.DefaultNavigateDelay,
			IntentTTL:     time.Minute,
			Prefix:        testPrefix,
		},
		Metrics: f.metrics,
		Clock:   clock.Now,
	})
	return f
}

func navigateTo(target string, preFill map[string]any) *assistant.ParseResponse {
	return &assistant.ParseResponse{
		Intent:     "create_document",
		Confidence: 0.92,
		Suggestion: "I'll set that up for you.",
		Action:     &assistant.Action{Type: assistant.ActionNavigate, Target: target, PreFill: preFill},
	}
}

func intentToken(t *testing.T, nav *assistant.Navigation) string {
	t.Helper()
	u, err := url.Parse(nav.URL)
	require.NoError(t, err)
	token := u.Query().Get(assistant.IntentParam)
	require.NotEmpty(t, token, "navigation url %s carries no intent", nav.URL)
	return token
}

func TestAssistantService_NavigateWithPreFill(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)
	ctx := context.Background()
	conv := NewConversationID()

	f.backend.EXPECT().
		ParseIntent(gomock.Any(), assistant.ParseRequest{Message: "Create a report titled Q4 Analysis", Context: skill.HomeContext}).
		Return(navigateTo("/dashboard-docx", map[string]any{"template": "report", "title": "Q4 Analysis"}), nil)

	reply, err := f.svc.Send(ctx, conv, "  Create a report titled Q4 Analysis ", "/")
	require.NoError(t, err)

	assert.False(t, reply.Failed)
	assert.Equal(t, "I'll set that up for you.", reply.Message.Content)
	assert.Equal(t, "create_document", reply.Intent)
	require.NotNil(t, reply.Navigation)
	assert.Equal(t, "docx", reply.Navigation.SkillID)
	assert.True(t, strings.HasPrefix(reply.Navigation.URL, "/tools/docx?"), reply.Navigation.URL)
	assert.Equal(t, assistant.DefaultNavigateDelay.Milliseconds(), reply.Navigation.DelayMS)

	token := intentToken(t, reply.Navigation)
	intent, err := f.svc.ConsumeIntent(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "docx", intent.SkillID)

	sk, ok := f.catalog.Skill(intent.SkillID)
	require.True(t, ok)
	op, values := sk.ApplyPreFill(intent.PreFill)
	assert.Equal(t, "report", op.ID)
	assert.Equal(t, "Q4 Analysis", values.Get("title"))

	_, err = f.svc.ConsumeIntent(ctx, token)
	assert.True(t, apperrors.IsNotFound(err), "pre-fill is applied once")

	stored, err := f.svc.Conversation(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, assistant.StateNavigating, stored.State)
	require.Len(t, stored.Messages, 3)
	assert.Equal(t, assistant.WelcomeMessage, stored.Messages[0].Content)
	assert.Equal(t, "Create a report titled Q4 Analysis", stored.Messages[1].Content)
	assert.Equal(t, assistant.RoleAssistant, stored.Messages[2].Role)

	msgs := f.metrics.Named("assistant.message")
	require.Len(t, msgs, 1)
	assert.Equal(t, metrics.ResultSuccess, msgs[0].Tags["result"])
	assert.Equal(t, "navigate", msgs[0].Tags["action"])
}

func TestAssistantService_NavigateWithoutPreFill(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)
	f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).Return(navigateTo("/tools/pdf", nil), nil)

	reply, err := f.svc.Send(context.Background(), NewConversationID(), "merge some pdfs", "/")
	require.NoError(t, err)
	require.NotNil(t, reply.Navigation)
	assert.Equal(t, "/tools/pdf", reply.Navigation.URL)
}

func TestAssistantService_UnknownTargetIsDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, target := range []string{"https://evil.example/dashboard-docx", "/dashboard-nope", "//evil.example"} {
		t.Run(target, func(t *testing.T) {
			t.Parallel()
			f := newAssistantFixture(t)
			f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).
				Return(navigateTo(target, map[string]any{"title": "x"}), nil)

			conv := NewConversationID()
			reply, err := f.svc.Send(ctx, conv, "go there", "/")
			require.NoError(t, err)
			assert.Nil(t, reply.Navigation)

			stored, err := f.svc.Conversation(ctx, conv)
			require.NoError(t, err)
			assert.Equal(t, assistant.StateIdle, stored.State)
		})
	}
}

func TestAssistantService_NonNavigateActionsAreInformational(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)
	f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).Return(&assistant.ParseResponse{
		Intent: "help",
		Action: &assistant.Action{Type: assistant.ActionShowHelp, Message: "Try asking for a report"},
	}, nil)

	reply, err := f.svc.Send(context.Background(), NewConversationID(), "what can you do", "/")
	require.NoError(t, err)
	assert.Nil(t, reply.Navigation)
	assert.Equal(t, assistant.DefaultReply, reply.Message.Content)
	require.NotNil(t, reply.Message.Action)
	assert.Equal(t, assistant.ActionShowHelp, reply.Message.Action.Type)
}

func TestAssistantService_BackendFailureApologizes(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)
	ctx := context.Background()
	conv := NewConversationID()

	f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	reply, err := f.svc.Send(ctx, conv, "make a memo", "/")
	require.NoError(t, err)
	assert.True(t, reply.Failed)
	assert.Equal(t, assistant.ApologyMessage, reply.Message.Content)
	assert.Nil(t, reply.Navigation)

	stored, err := f.svc.Conversation(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, assistant.StateIdle, stored.State)
	assert.Equal(t, assistant.ApologyMessage, stored.Messages[len(stored.Messages)-1].Content)

	msgs := f.metrics.Named("assistant.message")
	require.Len(t, msgs, 1)
	assert.Equal(t, metrics.ResultError, msgs[0].Tags["result"])
}

func TestAssistantService_BusyConversation(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)
	ctx := context.Background()
	conv := NewConversationID()

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, assistant.ParseRequest) (*assistant.ParseResponse, error) {
			close(started)
			<-release
			return &assistant.ParseResponse{Suggestion: "done"}, nil
		}).Times(1)

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Send(ctx, conv, "first", "/")
		first <- err
	}()
	<-started

	_, err := f.svc.Send(ctx, conv, "second", "/")
	require.Error(t, err)
	assert.True(t, IsBusy(err))

	// Other conversations are unaffected.
	f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).Return(&assistant.ParseResponse{Suggestion: "hi"}, nil)
	_, err = f.svc.Send(ctx, NewConversationID(), "hello", "/")
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-first)
}

func TestAssistantService_CacheUnavailableStillReplies(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheRepository(ctrl)
	down := errors.New("redis: connection refused")
	cache.EXPECT().SetIfNotExists(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, down)
	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, down)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(down).AnyTimes()

	backend := mocks.NewMockSkillsBackend(ctrl)
	backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).Return(&assistant.ParseResponse{Suggestion: "hello there"}, nil)

	svc := NewAssistantService(AssistantServiceOptions{
		Backend: backend,
		Catalog: testutil.LoadCatalog(t),
		Cache:   cache,
		Guard:   NewInflightGuard(cache, testPrefix),
		Config:  AssistantConfig{Timeout: time.Second, Prefix: testPrefix},
		Clock:   testClock().Now,
	})

	reply, err := svc.Send(context.Background(), NewConversationID(), "hi", "/")
	require.NoError(t, err)
	assert.False(t, reply.Failed)
	assert.Equal(t, "hello there", reply.Message.Content)
}

func TestAssistantService_StaleAwaitingStateIsReset(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)
	ctx := context.Background()
	conv := NewConversationID()

	stale := assistant.NewConversation(conv, f.clock.Now())
	_, err := stale.Begin("lost message", f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, core.SetJSON(ctx, f.cache, f.svc.conversationKey(conv), stale, time.Hour))

	f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).Return(&assistant.ParseResponse{Suggestion: "ok"}, nil)
	reply, err := f.svc.Send(ctx, conv, "try again", "/")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Message.Content)
}

func TestAssistantService_SendsPageContext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: skill.HomeContext},
		{path: "/tools/pdf", want: "pdf"},
		{path: "/tools/pdf/merge", want: "pdf"},
		{path: "/dashboard-xlsx", want: "xlsx"},
		{path: "/tools/unknown", want: skill.HomeContext},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			f := newAssistantFixture(t)
			f.backend.EXPECT().
				ParseIntent(gomock.Any(), assistant.ParseRequest{Message: "help", Context: tt.want}).
				Return(&assistant.ParseResponse{}, nil)

			reply, err := f.svc.Send(context.Background(), NewConversationID(), "help", tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Context)
		})
	}
}

func TestAssistantService_RejectsInput(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, NewConversationID(), "   ", "/")
	assert.ErrorIs(t, err, assistant.ErrEmptyMessage)

	_, err = f.svc.Send(ctx, "", "hello", "/")
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Send(ctx, NewConversationID(), strings.Repeat("x", 4001), "/")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "message", apperrors.GetField(err))
}

func TestAssistantService_ConsumeIntent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()
		f := newAssistantFixture(t)
		_, err := f.svc.ConsumeIntent(ctx, "not-a-token")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		f := newAssistantFixture(t)
		f.backend.EXPECT().ParseIntent(gomock.Any(), gomock.Any()).
			Return(navigateTo("/tools/pptx", map[string]any{"title": "Pitch"}), nil)

		reply, err := f.svc.Send(ctx, NewConversationID(), "pitch deck", "/")
		require.NoError(t, err)
		token := intentToken(t, reply.Navigation)

		f.clock.AddTime(2 * time.Minute)
		_, err = f.svc.ConsumeIntent(ctx, token)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestAssistantService_QuickActions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	custom := []assistant.QuickAction{{ID: "quick-art", Label: "Art", Prompt: "Generate a flow field"}}

	tests := []struct {
		name    string
		actions []assistant.QuickAction
		err     error
		want    []assistant.QuickAction
	}{
		{name: "backend list", actions: custom, want: custom},
		{name: "empty list uses defaults", want: assistant.DefaultQuickActions()},
		{name: "error uses defaults", err: errors.New("404"), want: assistant.DefaultQuickActions()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newAssistantFixture(t)
			f.backend.EXPECT().QuickActions(gomock.Any()).Return(tt.actions, tt.err)
			assert.Equal(t, tt.want, f.svc.QuickActions(ctx))
		})
	}

	t.Run("lookup by id", func(t *testing.T) {
		t.Parallel()
		f := newAssistantFixture(t)
		f.backend.EXPECT().QuickActions(gomock.Any()).Return(nil, nil).Times(2)

		a, ok := f.svc.QuickAction(ctx, "quick-memo")
		require.True(t, ok)
		assert.Equal(t, "Create a memo about the new remote work policy", a.Prompt)

		_, ok = f.svc.QuickAction(ctx, "missing")
		assert.False(t, ok)
	})
}

func TestAssistantService_ConversationStartsWithWelcome(t *testing.T) {
	t.Parallel()
	f := newAssistantFixture(t)

	conv, err := f.svc.Conversation(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, assistant.StateIdle, conv.State)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, assistant.WelcomeMessage, conv.Messages[0].Content)

	_, err = f.svc.Conversation(context.Background(), "")
	assert.True(t, apperrors.IsValidation(err))
}
