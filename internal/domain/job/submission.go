package job

import "time"

// SubmissionStatus is the persisted outcome of a submission.
type SubmissionStatus string

const (
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is one history row.
type Submission struct {
	ID          string           `json:"id"                     db:"id"`
	SkillID     string           `json:"skill_id"               db:"skill_id"`
	OperationID string           `json:"operation_id"           db:"operation_id"`
	Status      SubmissionStatus `json:"status"                 db:"status"`
	FailureKind *FailureKind     `json:"failure_kind,omitempty" db:"failure_kind"`
	Message     string           `json:"message,omitempty"      db:"message"`
	Filename    string           `json:"filename,omitempty"     db:"filename"`
	Bytes       int64            `json:"bytes"                  db:"bytes"`
	DurationMS  int64            `json:"duration_ms"            db:"duration_ms"`
	CreatedAt   time.Time        `json:"created_at"             db:"created_at"`
}

// SubmissionStats aggregates history since a point in time.
type SubmissionStats struct {
	Total     int `json:"total"     db:"total"`
	Succeeded int `json:"succeeded" db:"succeeded"`
	Failed    int `json:"failed"    db:"failed"`
}

// NewSubmission builds a history row from a completed result.
func NewSubmission(id, skillID, operationID string, res Result, took time.Duration, at time.Time) Submission {
	s := Submission{
		ID:          id,
		SkillID:     skillID,
		OperationID: operationID,
		DurationMS:  took.Milliseconds(),
		CreatedAt:   at.UTC(),
	}
	switch {
	case res.OK():
		s.Status = SubmissionSucceeded
		if res.Blob != nil {
			s.Filename = res.Blob.Filename
			s.Bytes = res.Bytes()
		}
	case res.Failure != nil:
		s.Status = SubmissionFailed
		kind := res.Failure.Kind
		s.FailureKind = &kind
		s.Message = res.Failure.Message
	default:
		s.Status = SubmissionFailed
		kind := FailureServer
		s.FailureKind = &kind
	}
	return s
}

// DefaultHistoryLimit bounds history listings when no limit is given.
const DefaultHistoryLimit = 20

// SubmissionFilter narrows a history listing. Zero values match everything.
type SubmissionFilter struct {
	SkillID string
	Status  SubmissionStatus
	Limit   int
}

// Normalize clamps Limit into [1, 200].
func (f SubmissionFilter) Normalize() SubmissionFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultHistoryLimit
	case f.Limit > 200:
		f.Limit = 200
	}
	return f
}
