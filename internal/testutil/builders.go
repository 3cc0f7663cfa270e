// Package testutil provides testing utilities and helpers for skilldeck.
package testutil

import (
	"time"

	"github.com/google/uuid"

	skilldeck "github.com/skilldeck/skilldeck"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
)

// LoadCatalog returns the embedded production catalog.
func LoadCatalog(t TestingTB) *skill.Catalog {
	t.Helper()
	cat, err := skill.Load(skilldeck.CatalogFS, skilldeck.CatalogFile)
	if err != nil {
		t.Fatal("load catalog:", err)
	}
	return cat
}

// SubmissionBuilder provides a fluent interface for building history rows in tests.
type SubmissionBuilder struct {
	s job.Submission
}

// NewSubmission creates a SubmissionBuilder for a successful PDF merge.
func NewSubmission() *SubmissionBuilder {
	return &SubmissionBuilder{s: job.Submission{
		ID:          uuid.NewString(),
		SkillID:     "pdf",
		OperationID: "merge",
		Status:      job.SubmissionSucceeded,
		Filename:    "merged.pdf",
		Bytes:       1024,
		DurationMS:  250,
		CreatedAt:   TestTime(),
	}}
}

// WithOperation sets the skill and operation ids.
func (b *SubmissionBuilder) WithOperation(skillID, opID string) *SubmissionBuilder {
	b.s.SkillID, b.s.OperationID = skillID, opID
	return b
}

// WithFailure marks the submission failed.
func (b *SubmissionBuilder) WithFailure(kind job.FailureKind, msg string) *SubmissionBuilder {
	b.s.Status = job.SubmissionFailed
	b.s.FailureKind = &kind
	b.s.Message = msg
	b.s.Filename = ""
	b.s.Bytes = 0
	return b
}

// WithCreatedAt sets the creation time.
func (b *SubmissionBuilder) WithCreatedAt(at time.Time) *SubmissionBuilder {
	b.s.CreatedAt = at.UTC()
	return b
}

// Build returns a pointer to a copy of the submission.
func (b *SubmissionBuilder) Build() *job.Submission {
	s := b.s
	return &s
}
