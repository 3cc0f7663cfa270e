package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/skilldeck/skilldeck/internal/domain/job"
)

// transportFailure classifies an error from sending a request or reading its
// body. The returned error wraps both a *job.Failure and the cause.
func transportFailure(ctx context.Context, err error) error {
	kind := job.FailureNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = job.FailureTimeout
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		kind = job.FailureCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = job.FailureTimeout
	}
	return fmt.Errorf("%w: %w", &job.Failure{Kind: kind, Message: job.DefaultMessage(kind)}, err)
}

// ErrorMessage evaluates exprs in order against a JSON error body and returns
// the first usable message. Strings are used as-is; arrays of validation
// objects (`[{"loc": [...], "msg": "..."}]`) are joined by their msg fields.
func ErrorMessage(exprs []string, body []byte) string {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, expr := range exprs {
		v, err := jmespath.Search(expr, doc)
		if err != nil || v == nil {
			continue
		}
		if msg := messageFrom(v); msg != "" {
			return msg
		}
	}
	return ""
}

func messageFrom(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		msgs := make([]string, 0, len(t))
		for _, item := range t {
			switch e := item.(type) {
			case string:
				if s := strings.TrimSpace(e); s != "" {
					msgs = append(msgs, s)
				}
			case map[string]any:
				if s, ok := e["msg"].(string); ok && strings.TrimSpace(s) != "" {
					msgs = append(msgs, strings.TrimSpace(s))
				}
			}
		}
		return strings.Join(msgs, "; ")
	default:
		return ""
	}
}
