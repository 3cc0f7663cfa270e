// Package metrics emits the standard skilldeck metric shapes to a statsd sink.
package metrics

import (
	"maps"
	"time"

	obserrors "github.com/skilldeck/skilldeck/internal/observability/errors"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// SubmissionMetric describes one controller outcome.
type SubmissionMetric struct {
	Skill     string
	Operation string
	Result    string
	Duration  time.Duration
	Bytes     int64
	Err       error
}

// EmitSubmission records submission.total, submission.duration and, for blobs,
// submission.bytes.
func EmitSubmission(sink statsd.Sink, in SubmissionMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"skill":     in.Skill,
		"operation": in.Operation,
		"result":    in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		tags["error_class"] = obserrors.Classify(in.Err)
	}

	sink.Count("submission.total", 1, tags)
	if in.Duration > 0 {
		sink.Timing("submission.duration", in.Duration, CloneTags(tags))
	}
	if in.Bytes > 0 {
		sink.Gauge("submission.bytes", float64(in.Bytes), CloneTags(tags))
	}
}

// AssistantMetric describes one chat exchange.
type AssistantMetric struct {
	Intent   string
	Action   string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitAssistant records assistant.message and assistant.duration.
func EmitAssistant(sink statsd.Sink, in AssistantMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"result": in.Result}
	if in.Intent != "" {
		tags["intent"] = in.Intent
	}
	if in.Action != "" {
		tags["action"] = in.Action
	}
	if in.Err != nil && in.Result == ResultError {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("assistant.message", 1, tags)
	if in.Duration > 0 {
		sink.Timing("assistant.duration", in.Duration, CloneTags(tags))
	}
}

// EmitCleanup records how many items a janitor pass removed.
func EmitCleanup(sink statsd.Sink, target string, removed int64, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	switch {
	case err != nil:
		result = ResultError
	case removed == 0:
		result = ResultNoop
	}
	tags := map[string]string{"target": target, "result": result}
	sink.Count("cleanup.run", 1, tags)
	if removed > 0 {
		sink.Count("cleanup.removed", removed, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
