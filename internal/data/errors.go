package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrSubmissionRequired   = errors.New("submission is required")
	ErrSubmissionIncomplete = errors.New("submission id, skill_id and operation_id are required")

	ErrKeyRequired = errors.New("key cannot be empty")
)
