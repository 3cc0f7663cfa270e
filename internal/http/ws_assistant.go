package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
	"github.com/skilldeck/skilldeck/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 << 10
)

// Websocket message types.
const (
	wsTypeWelcome      = "welcome"
	wsTypeMessage      = "message"
	wsTypeReply        = "reply"
	wsTypeError        = "error"
	wsTypeQuickActions = "quick_actions"
)

// wsInbound is a client frame.
type wsInbound struct {
	Type        string `json:"type"`
	Message     string `json:"message,omitempty"`
	QuickAction string `json:"quick_action,omitempty"`
	Path        string `json:"path,omitempty"`
}

// wsOutbound is a server frame.
type wsOutbound struct {
	Type           string                  `json:"type"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Reply          *assistant.Reply        `json:"reply,omitempty"`
	Conversation   *assistant.Conversation `json:"conversation,omitempty"`
	QuickActions   []assistant.QuickAction `json:"quick_actions,omitempty"`
	Error          string                  `json:"error,omitempty"`
	Message        string                  `json:"message,omitempty"`
}

// AssistantSocket streams a conversation over a websocket. Messages on one
// connection are handled in order; a connection owns one conversation.
type AssistantSocket struct {
	Svc AssistantAPI
	// AllowAnyOrigin disables the same-origin check (local development).
	AllowAnyOrigin bool
	Logger         *slog.Logger
}

func (s *AssistantSocket) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ServeHTTP upgrades the connection. ?conversation_id= resumes a conversation.
func (s *AssistantSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	if s.AllowAnyOrigin {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.logger().WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	convID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if convID == "" {
		convID = service.NewConversationID()
	}

	// The request context ends when the handler returns; keep values only.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	s.serve(ctx, conn, convID)
}

func (s *AssistantSocket) serve(ctx context.Context, conn *websocket.Conn, convID string) {
	logger := s.logger().With("conversation", convID)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go s.ping(ctx, conn)

	welcome := wsOutbound{Type: wsTypeWelcome, ConversationID: convID}
	if conv, err := s.Svc.Conversation(ctx, convID); err == nil {
		welcome.Conversation = conv
	}
	if err := writeFrame(conn, welcome); err != nil {
		return
	}

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.InfoContext(ctx, "websocket closed", "error", err)
			}
			return
		}
		out := s.handle(ctx, convID, in)
		if err := writeFrame(conn, out); err != nil {
			logger.InfoContext(ctx, "websocket write failed", "error", err)
			return
		}
	}
}

func (s *AssistantSocket) handle(ctx context.Context, convID string, in wsInbound) wsOutbound {
	switch in.Type {
	case wsTypeQuickActions:
		return wsOutbound{Type: wsTypeQuickActions, QuickActions: s.Svc.QuickActions(ctx)}
	case wsTypeMessage, "":
		text := in.Message
		if in.QuickAction != "" {
			qa, ok := s.Svc.QuickAction(ctx, in.QuickAction)
			if !ok {
				return wsOutbound{Type: wsTypeError, Error: string(apperrors.ErrCodeValidation), Message: "unknown quick action"}
			}
			text = qa.Prompt
		}
		reply, err := s.Svc.Send(ctx, convID, text, in.Path)
		if err != nil {
			err = assistantError(err)
			return wsOutbound{
				Type:    wsTypeError,
				Error:   string(errorCode(err)),
				Message: apperrors.UserMessage(err, "message failed"),
			}
		}
		return wsOutbound{Type: wsTypeReply, ConversationID: convID, Reply: reply}
	default:
		return wsOutbound{Type: wsTypeError, Error: string(apperrors.ErrCodeValidation), Message: "unknown message type " + in.Type}
	}
}

// ping keeps the connection alive until ctx ends. WriteControl may run
// concurrently with the reader loop's writes.
func (s *AssistantSocket) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v wsOutbound) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}
