package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
	"github.com/skilldeck/skilldeck/internal/service"
)

const (
	msgAssistantBusy  = "Please wait for the current reply before sending another message."
	msgAssistantEmpty = "Type a message first."
)

// assistantError maps a Send error onto the app error vocabulary.
func assistantError(err error) error {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return apperrors.ValidationField("message", "message is empty")
	case service.IsBusy(err):
		return apperrors.Busy(err.Error())
	default:
		return err
	}
}

// --- Dashboard widget ---

// conversationID returns the widget's conversation id, issuing a cookie for
// a new one when the browser has none.
func (h *UIHandlers) conversationID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(ConversationCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	id := service.NewConversationID()
	http.SetCookie(w, &http.Cookie{
		Name:     ConversationCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookies || isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   conversationCookieMaxAge,
	})
	return id
}

// AssistantMessage sends one chat message from the widget and renders the
// exchange. A navigate reply raises assistant:navigate so the page moves
// after the configured delay.
func (h *UIHandlers) AssistantMessage(w http.ResponseWriter, r *http.Request) {
	if h.Assistant == nil {
		h.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderAssistantError(w, r, "", "Invalid message.")
		return
	}

	ctx := r.Context()
	text := r.PostForm.Get("message")
	if id := strings.TrimSpace(r.PostForm.Get("quick_action")); id != "" {
		if qa, ok := h.Assistant.QuickAction(ctx, id); ok {
			text = qa.Prompt
		}
	}

	path := HXCurrentPath(r)
	if path == "" {
		path = r.PostForm.Get("path")
	}

	convID := h.conversationID(w, r)
	reply, err := h.Assistant.Send(ctx, convID, text, path)
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrEmptyMessage):
			h.renderAssistantError(w, r, "", msgAssistantEmpty)
		case service.IsBusy(err):
			h.renderAssistantError(w, r, text, msgAssistantBusy)
		case apperrors.IsValidation(err):
			h.renderAssistantError(w, r, text, apperrors.UserMessage(err, "Invalid message."))
		default:
			h.logger().ErrorContext(ctx, "assistant send failed", "conversation", convID, "error", err)
			h.renderAssistantError(w, r, text, assistant.ApologyMessage)
		}
		return
	}

	HTMX(w).Navigate(reply.Navigation)
	h.renderFragment(w, r, "assistant-exchange", map[string]any{
		"UserMessage": strings.TrimSpace(text),
		"Reply":       reply,
	})
}

func (h *UIHandlers) renderAssistantError(w http.ResponseWriter, r *http.Request, text, message string) {
	h.renderFragment(w, r, "assistant-exchange", map[string]any{
		"UserMessage":  strings.TrimSpace(text),
		"ErrorMessage": message,
	})
}

// AssistantConversation renders the widget transcript.
func (h *UIHandlers) AssistantConversation(w http.ResponseWriter, r *http.Request) {
	if h.Assistant == nil {
		h.NotFound(w, r)
		return
	}
	conv, err := h.Assistant.Conversation(r.Context(), h.conversationID(w, r))
	if err != nil {
		h.logger().WarnContext(r.Context(), "load conversation", "error", err)
		conv = assistant.NewConversation("", time.Now())
	}
	h.renderFragment(w, r, "assistant-transcript", map[string]any{"Conversation": conv})
}

// AssistantQuickActions renders the quick action buttons.
func (h *UIHandlers) AssistantQuickActions(w http.ResponseWriter, r *http.Request) {
	if h.Assistant == nil {
		h.NotFound(w, r)
		return
	}
	h.renderFragment(w, r, "quick-actions", map[string]any{
		"QuickActions": h.Assistant.QuickActions(r.Context()),
	})
}

// --- JSON API ---

// AssistantHandlers serves the assistant over JSON.
type AssistantHandlers struct {
	Svc    AssistantAPI
	Logger *slog.Logger
}

type parseRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	QuickAction    string `json:"quick_action"`
	Path           string `json:"path"`
}

type parseResponse struct {
	ConversationID string           `json:"conversation_id"`
	Reply          *assistant.Reply `json:"reply"`
}

// Parse sends a message. A missing conversation id starts a new conversation.
func (h *AssistantHandlers) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	if req.QuickAction != "" {
		qa, ok := h.Svc.QuickAction(ctx, req.QuickAction)
		if !ok {
			WriteAppError(w, apperrors.ValidationField("quick_action", "unknown quick action"))
			return
		}
		req.Message = qa.Prompt
	}
	if req.ConversationID == "" {
		req.ConversationID = service.NewConversationID()
	}

	reply, err := h.Svc.Send(ctx, req.ConversationID, req.Message, req.Path)
	if err != nil {
		WriteAppError(w, assistantError(err))
		return
	}
	WriteJSON(w, http.StatusOK, parseResponse{ConversationID: req.ConversationID, Reply: reply})
}

// Conversation returns a conversation transcript.
func (h *AssistantHandlers) Conversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.Svc.Conversation(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

// Intent consumes a navigation intent. A token can be read once.
func (h *AssistantHandlers) Intent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.Svc.ConsumeIntent(r.Context(), r.PathValue("token"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, intent)
}

// QuickActions lists the quick actions.
func (h *AssistantHandlers) QuickActions(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"actions": h.Svc.QuickActions(r.Context())})
}
