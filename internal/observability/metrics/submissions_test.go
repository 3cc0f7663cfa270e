package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/observability/statsd"
)

func TestEmitSubmission(t *testing.T) {
	var rec statsd.Recorder
	EmitSubmission(&rec, SubmissionMetric{
		Skill: "pdf", Operation: "merge", Result: ResultSuccess,
		Duration: 300 * time.Millisecond, Bytes: 2048,
	})

	total := rec.Named("submission.total")
	require.Len(t, total, 1)
	assert.Equal(t, map[string]string{"skill": "pdf", "operation": "merge", "result": "success"}, total[0].Tags)
	assert.Len(t, rec.Named("submission.duration"), 1)
	assert.InDelta(t, 2048.0, rec.Named("submission.bytes")[0].Value, 0)
}

func TestEmitSubmission_ErrorClass(t *testing.T) {
	var rec statsd.Recorder
	err := fmt.Errorf("%w: %w", &job.Failure{Kind: job.FailureTimeout}, errors.New("deadline"))
	EmitSubmission(&rec, SubmissionMetric{Skill: "docx", Operation: "create", Result: ResultError, Err: err})

	total := rec.Named("submission.total")
	require.Len(t, total, 1)
	assert.Equal(t, "timeout", total[0].Tags["error_class"])
	assert.Empty(t, rec.Named("submission.duration"))
	assert.Empty(t, rec.Named("submission.bytes"))
}

func TestEmitAssistant(t *testing.T) {
	var rec statsd.Recorder
	EmitAssistant(&rec, AssistantMetric{Intent: "create_document", Action: "navigate", Result: ResultSuccess, Duration: time.Second})
	msg := rec.Named("assistant.message")
	require.Len(t, msg, 1)
	assert.Equal(t, "navigate", msg[0].Tags["action"])
	assert.Len(t, rec.Named("assistant.duration"), 1)
}

func TestEmitCleanup(t *testing.T) {
	var rec statsd.Recorder
	EmitCleanup(&rec, "history", 0, nil)
	EmitCleanup(&rec, "history", 5, nil)
	EmitCleanup(&rec, "history", 0, errors.New("boom"))

	runs := rec.Named("cleanup.run")
	require.Len(t, runs, 3)
	assert.Equal(t, ResultNoop, runs[0].Tags["result"])
	assert.Equal(t, ResultSuccess, runs[1].Tags["result"])
	assert.Equal(t, ResultError, runs[2].Tags["result"])
	assert.InDelta(t, 5.0, rec.Named("cleanup.removed")[0].Value, 0)
}

func TestNilSink(t *testing.T) {
	EmitSubmission(nil, SubmissionMetric{})
	EmitAssistant(nil, AssistantMetric{})
	EmitCleanup(nil, "x", 1, nil)
	assert.Nil(t, CloneTags(nil))
}
