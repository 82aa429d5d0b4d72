package port

import (
	"context"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

// IdentityResolver resolves the caller of an intercepted statement.
// It never fails: unresolvable addresses fall back to domain.LoopbackAddress.
type IdentityResolver interface {
	Resolve(ctx context.Context) domain.Caller
}
