package port

import (
	"context"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

// StatementRecorder is what the interception proxies call into.
type StatementRecorder interface {
	// Capture records one statement. A non-nil error means the real call
	// must not run (fail-closed); fail-open recorders report and return nil.
	Capture(ctx context.Context, sql string, args []any, source domain.Source) error
	// ExecutionFailed reports a driver error on the diagnostic channel.
	ExecutionFailed(ctx context.Context, sql string, source domain.Source, err error)
}

// ParamMasker rewrites bound values before they are rendered into a record.
type ParamMasker interface {
	MaskParams(sql string, values []any) []any
}
