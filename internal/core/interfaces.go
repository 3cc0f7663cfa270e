package core

import (
	"context"
	"mime"
	"strings"
	"time"

	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
)

// This file contains the port definitions between the service layer and the
// adapters. Services depend on these interfaces, not on concrete types.

// SubmissionRepository persists submission history.
type SubmissionRepository interface {
	Insert(ctx context.Context, s *job.Submission) error
	ListRecent(ctx context.Context, f job.SubmissionFilter) ([]*job.Submission, error)
	Stats(ctx context.Context, since time.Time) (*job.SubmissionStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// BackendResponse is a successful (2xx) reply from the skills backend.
type BackendResponse struct {
	Status      int
	ContentType string
	// Filename is taken from Content-Disposition when present.
	Filename string
	Body     []byte
}

// IsJSON reports whether the body is declared as JSON.
func (r *BackendResponse) IsJSON() bool {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// SkillsBackend is the remote API that performs the actual document work.
//
// Errors returned by Submit are *job.Failure values classifying what went
// wrong (network, server, malformed, timeout or canceled). Server failures
// carry the status code and the message extracted from the error body, which
// may be empty.
type SkillsBackend interface {
	Submit(ctx context.Context, op *skill.Operation, cfg job.Config) (*BackendResponse, error)
	// FetchJSON GETs endpoint and returns the decoded JSON document.
	FetchJSON(ctx context.Context, endpoint string) (any, error)
	ParseIntent(ctx context.Context, req assistant.ParseRequest) (*assistant.ParseResponse, error)
	QuickActions(ctx context.Context) ([]assistant.QuickAction, error)
	Health(ctx context.Context) error
}
