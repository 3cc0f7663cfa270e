package assistant

import (
	"errors"
	"strings"
	"time"
)

// State is the lifecycle position of a conversation.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
	StateNavigating       State = "navigating"
)

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrConversationBusy is returned when a message is sent while a reply is pending.
	ErrConversationBusy = errors.New("a reply is still pending for this conversation")
)

// MaxTranscript bounds the number of messages kept per conversation.
const MaxTranscript = 50

// Conversation is the transcript and state of one chat session. It is not
// safe for concurrent use; callers serialize access.
type Conversation struct {
	ID       string    `json:"id"`
	State    State     `json:"state"`
	Messages []Message `json:"messages"`
	Updated  time.Time `json:"updated"`
}

// NewConversation starts a conversation with the welcome message.
func NewConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		ID:       id,
		State:    StateIdle,
		Messages: []Message{{Role: RoleAssistant, Content: WelcomeMessage, At: now}},
		Updated:  now,
	}
}

// Begin records a user message and moves to AwaitingResponse. The trimmed
// text is returned.
func (c *Conversation) Begin(text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if c.State == StateAwaitingResponse {
		return "", ErrConversationBusy
	}
	c.append(Message{Role: RoleUser, Content: text, At: now})
	c.State = StateAwaitingResponse
	return text, nil
}

// Complete records the assistant reply and returns to Idle, or to Navigating
// when the reply will be followed by a page change.
func (c *Conversation) Complete(reply Message, navigating bool) {
	c.append(reply)
	c.State = StateIdle
	if navigating {
		c.State = StateNavigating
	}
}

// Fail records the apology message and returns to Idle.
func (c *Conversation) Fail(now time.Time) Message {
	msg := Message{Role: RoleAssistant, Content: ApologyMessage, At: now}
	c.append(msg)
	c.State = StateIdle
	return msg
}

// Busy reports whether a reply is pending.
func (c *Conversation) Busy() bool { return c.State == StateAwaitingResponse }

func (c *Conversation) append(m Message) {
	c.Messages = append(c.Messages, m)
	if over := len(c.Messages) - MaxTranscript; over > 0 {
		c.Messages = append(c.Messages[:0:0], c.Messages[over:]...)
	}
	c.Updated = m.At
}
