package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skilldeck/skilldeck/internal/domain/assistant"
)

type askOptions struct {
	remoteOptions
	Conversation string
	QuickAction  string
	Path         string
}

func parseAskFlags(cmdCtx *commandContext, name string, args []string) (askOptions, []string, error) {
	var opts askOptions
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	opts.register(fs, cmdCtx)
	fs.StringVar(&opts.Conversation, "conversation", "", "Conversation id to continue")
	fs.StringVar(&opts.Path, "path", "", "Page path used as context (for example /tools/pdf)")
	if name == "ask" {
		fs.StringVar(&opts.QuickAction, "quick", "", "Send a quick action by id instead of a message")
	}
	if err := fs.Parse(args); err != nil {
		return askOptions{}, nil, err
	}
	return opts, fs.Args(), nil
}

type askRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
	QuickAction    string `json:"quick_action,omitempty"`
	Path           string `json:"path,omitempty"`
}

type askResponse struct {
	ConversationID string           `json:"conversation_id"`
	Reply          *assistant.Reply `json:"reply"`
}

func runAsk(cmdCtx *commandContext, args []string) error {
	opts, rest, err := parseAskFlags(cmdCtx, "ask", args)
	if err != nil {
		return err
	}
	message := strings.TrimSpace(strings.Join(rest, " "))
	if message == "" && opts.QuickAction == "" {
		return errors.New("a message or --quick is required")
	}
	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, stop := withSignals(cmdCtx.Ctx)
	defer stop()

	var resp askResponse
	err = client.postJSON(ctx, "/api/assistant/parse", askRequest{
		ConversationID: opts.Conversation,
		Message:        message,
		QuickAction:    opts.QuickAction,
		Path:           opts.Path,
	}, &resp)
	if err != nil {
		return err
	}
	if err := printReply(cmdCtx, client, resp.Reply); err != nil {
		return err
	}
	return writef(cmdCtx.Out, "(conversation %s)\n", resp.ConversationID)
}

func printReply(cmdCtx *commandContext, client *apiClient, reply *assistant.Reply) error {
	if reply == nil {
		return nil
	}
	prefix := "assistant"
	if reply.Failed {
		prefix = "assistant (error)"
	}
	if err := writef(cmdCtx.Out, "%s: %s\n", prefix, reply.Message.Content); err != nil {
		return err
	}
	if nav := reply.Navigation; nav != nil {
		return writef(cmdCtx.Out, "-> open %s (%s)\n", client.absolute(nav.URL), nav.SkillID)
	}
	return nil
}

// socket frames; see the dashboard's /api/assistant/ws handler.
type chatFrame struct {
	Type           string                  `json:"type"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Message        string                  `json:"message,omitempty"`
	QuickAction    string                  `json:"quick_action,omitempty"`
	Path           string                  `json:"path,omitempty"`
	Reply          *assistant.Reply        `json:"reply,omitempty"`
	Conversation   *assistant.Conversation `json:"conversation,omitempty"`
	QuickActions   []assistant.QuickAction `json:"quick_actions,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

func (c *apiClient) socketURL(path string, query url.Values) string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// runChat reads lines from stdin and prints replies. "/quick" lists quick
// actions and "/quick <id>" sends one.
func runChat(cmdCtx *commandContext, args []string) error {
	opts, _, err := parseAskFlags(cmdCtx, "chat", args)
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, stop := withSignals(cmdCtx.Ctx)
	defer stop()

	query := url.Values{}
	if opts.Conversation != "" {
		query.Set("conversation_id", opts.Conversation)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: websocket.DefaultDialer.Proxy}
	conn, resp, err := dialer.DialContext(ctx, client.socketURL("/api/assistant/ws", query), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect assistant socket: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var welcome chatFrame
	if err := conn.ReadJSON(&welcome); err != nil {
		return fmt.Errorf("read welcome: %w", err)
	}
	if err := writef(cmdCtx.Out, "conversation %s\n", welcome.ConversationID); err != nil {
		return err
	}
	if welcome.Conversation != nil && len(welcome.Conversation.Messages) > 0 {
		last := welcome.Conversation.Messages[len(welcome.Conversation.Messages)-1]
		if err := writef(cmdCtx.Out, "assistant: %s\n", last.Content); err != nil {
			return err
		}
	}

	return chatLoop(ctx, cmdCtx, client, conn, opts.Path)
}

// chatLoop keeps a reader running so server pings are answered while the
// prompt waits for input.
func chatLoop(ctx context.Context, cmdCtx *commandContext, client *apiClient, conn *websocket.Conn, path string) error {
	frames := make(chan chatFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var in chatFrame
			if err := conn.ReadJSON(&in); err != nil {
				readErr <- err
				return
			}
			frames <- in
		}
	}()

	scanner := bufio.NewScanner(cmdCtx.In)
	for {
		if err := writef(cmdCtx.Out, "> "); err != nil {
			return err
		}
		if !scanner.Scan() {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		out := chatFrame{Type: "message", Message: line, Path: path}
		if rest, ok := strings.CutPrefix(line, "/quick"); ok {
			if id := strings.TrimSpace(rest); id != "" {
				out = chatFrame{Type: "message", QuickAction: id, Path: path}
			} else {
				out = chatFrame{Type: "quick_actions"}
			}
		}
		if err := conn.WriteJSON(out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("send: %w", err)
		}

		select {
		case in := <-frames:
			if err := printFrame(cmdCtx, client, in); err != nil {
				return err
			}
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func printFrame(cmdCtx *commandContext, client *apiClient, in chatFrame) error {
	switch in.Type {
	case "reply":
		return printReply(cmdCtx, client, in.Reply)
	case "quick_actions":
		for _, qa := range in.QuickActions {
			if err := writef(cmdCtx.Out, "  /quick %-12s %s\n", qa.ID, qa.Label); err != nil {
				return err
			}
		}
		return nil
	case "error":
		return writef(cmdCtx.Out, "error (%s): %s\n", in.Error, in.Message)
	default:
		return writef(cmdCtx.Out, "unexpected frame %q\n", in.Type)
	}
}
