package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skilldeck/skilldeck/internal/domain/job"
	apperrors "github.com/skilldeck/skilldeck/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"failure", &job.Failure{Kind: job.FailureNetwork}, "network"},
		{"wrapped failure", fmt.Errorf("%w: %w", &job.Failure{Kind: job.FailureMalformed}, goerrors.New("eof")), "malformed"},
		{"app error", fmt.Errorf("list: %w", apperrors.NotFound("gone")), "not_found"},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"concrete type", fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Err: goerrors.New("refused")}), "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
