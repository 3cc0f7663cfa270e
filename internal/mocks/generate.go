// Package mocks provides mock implementations of the core ports.
//
// This package uses go.uber.org/mock (gomock). The mocks are generated with
// go:generate directives and checked in so tests build without codegen.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	backend := mocks.NewMockSkillsBackend(ctrl)
//	backend.EXPECT().Submit(gomock.Any(), op, gomock.Any()).Return(resp, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/skilldeck/skilldeck/internal/core CacheRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=submission_repository_mock.go github.com/skilldeck/skilldeck/internal/core SubmissionRepository

// SkillsBackend: Submit, FetchJSON, ParseIntent, QuickActions, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=skills_backend_mock.go github.com/skilldeck/skilldeck/internal/core SkillsBackend
