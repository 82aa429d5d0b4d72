package port

import (
	"context"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

// Audit stages distinguish a failed record write from a failed driver call.
const (
	StageRecord  = "record"
	StageExecute = "execute"
)

// AuditEntry is one diagnostic event on the interception path.
type AuditEntry struct {
	Stage      string
	Source     domain.Source
	SQL        string
	DurationMS int64
	Err        error
}

// QueryAuditor is the diagnostic channel for interception failures.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
