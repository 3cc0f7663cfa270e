package job

import "fmt"

// Kind discriminates a Result.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// FailureKind classifies why a submission did not produce a payload.
type FailureKind string

const (
	// FailureNetwork means the backend could not be reached.
	FailureNetwork FailureKind = "network"
	// FailureServer means the backend answered with a non-2xx status.
	FailureServer FailureKind = "server"
	// FailureMalformed means a 2xx body could not be decoded.
	FailureMalformed FailureKind = "malformed"
	// FailureTimeout means the submission deadline elapsed.
	FailureTimeout FailureKind = "timeout"
	// FailureCanceled means the caller went away before the backend answered.
	FailureCanceled FailureKind = "canceled"
	// FailureBusy means the form instance already had a request in flight.
	FailureBusy FailureKind = "busy"
)

// Messages shown for failures that carry no backend-supplied text.
const (
	MessageUnreachable = "Unable to reach the skills backend"
	MessageMalformed   = "The skills backend returned an unreadable response"
	MessageTimeout     = "The skills backend did not respond in time"
	MessageCanceled    = "The request was canceled"
	MessageBusy        = "This form already has a request in progress"
)

// DefaultMessage returns the user-facing text for kind. Server failures have
// no default; their text comes from the backend or the catalog.
func DefaultMessage(kind FailureKind) string {
	switch kind {
	case FailureNetwork:
		return MessageUnreachable
	case FailureMalformed:
		return MessageMalformed
	case FailureTimeout:
		return MessageTimeout
	case FailureCanceled:
		return MessageCanceled
	case FailureBusy:
		return MessageBusy
	default:
		return ""
	}
}

// Blob is a binary artifact produced by the backend.
type Blob struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Record is a decoded JSON object produced by the backend.
type Record map[string]any

// Failure describes a submission that produced no payload.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	// Status is the backend HTTP status for server failures, zero otherwise.
	Status int `json:"status,omitempty"`
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Result is the outcome of one submission. Exactly one of Blob, Record or
// Failure is set, matching Kind.
type Result struct {
	Kind    Kind     `json:"kind"`
	Blob    *Blob    `json:"blob,omitempty"`
	Record  Record   `json:"record,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

// Binary builds a successful binary result.
func Binary(b Blob) Result { return Result{Kind: KindSuccess, Blob: &b} }

// Structured builds a successful record result. A nil record becomes empty.
func Structured(r Record) Result {
	if r == nil {
		r = Record{}
	}
	return Result{Kind: KindSuccess, Record: r}
}

// Failed builds a failure result.
func Failed(kind FailureKind, message string, status int) Result {
	return Result{Kind: KindFailure, Failure: &Failure{Kind: kind, Message: message, Status: status}}
}

// OK reports whether the result carries a payload.
func (r Result) OK() bool { return r.Kind == KindSuccess }

// IsBinary reports whether the result is a blob.
func (r Result) IsBinary() bool { return r.Kind == KindSuccess && r.Blob != nil }

// Bytes returns the payload size for binary results.
func (r Result) Bytes() int64 {
	if r.Blob == nil {
		return 0
	}
	return int64(len(r.Blob.Data))
}
