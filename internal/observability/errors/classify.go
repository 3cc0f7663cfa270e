// Package errors turns arbitrary errors into short, low-cardinality class
// names for metric tags and log fields.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

// Classify returns a normalized class for err:
//   - submission failures become their kind ("timeout", "server", ...)
//   - application errors become their code
//   - context errors become "timeout" or "canceled"
//   - anything else becomes the innermost concrete type, e.g. "net_operror"
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var failure *job.Failure
	if goerrors.As(err, &failure) {
		return string(failure.Kind)
	}
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
