// Package identity resolves the host name and network address recorded as
// the caller of each intercepted statement.
package identity

import (
	"context"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a successful resolution is reused.
const DefaultTTL = time.Minute

// DefaultFailureTTL is how long the loopback fallback is reused after a
// failed lookup. It never exceeds the resolver's TTL.
const DefaultFailureTTL = 5 * time.Second

// Resolver implements port.IdentityResolver. Successful lookups are cached
// for the TTL and the loopback fallback for the failure TTL. Concurrent
// callers share one in-flight lookup, which runs without holding the cache
// lock.
type Resolver struct {
	name       string
	ttl        time.Duration
	failureTTL time.Duration
	logger     *slog.Logger

	hostname   func() (string, error)
	lookupHost func(ctx context.Context, host string) ([]string, error)
	now        func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	cached    domain.Caller
	expiresAt time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithName overrides the host name reported as the caller.
func WithName(name string) Option {
	return func(r *Resolver) { r.name = name }
}

// WithTTL sets the cache lifetime. Zero disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithFailureTTL sets how long a failed lookup's fallback is reused.
func WithFailureTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.failureTTL = ttl }
}

func WithHostnameFunc(fn func() (string, error)) Option {
	return func(r *Resolver) { r.hostname = fn }
}

func WithLookupFunc(fn func(ctx context.Context, host string) ([]string, error)) Option {
	return func(r *Resolver) { r.lookupHost = fn }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		ttl:        DefaultTTL,
		failureTTL: DefaultFailureTTL,
		logger:     logger,
		hostname:   os.Hostname,
		lookupHost: net.DefaultResolver.LookupHost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.failureTTL = min(r.failureTTL, r.ttl)
	return r
}

// Resolve returns the current caller identity. It never fails.
func (r *Resolver) Resolve(ctx context.Context) domain.Caller {
	if c, ok := r.fresh(); ok {
		return c
	}

	// The shared lookup must not fail for every waiter because the first
	// caller's context was cancelled.
	lookupCtx := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do("caller", func() (any, error) {
		if c, ok := r.fresh(); ok {
			return c, nil
		}
		c, ok := r.lookup(lookupCtx)
		r.store(c, ok)
		return c, nil
	})
	return v.(domain.Caller)
}

func (r *Resolver) fresh() (domain.Caller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expiresAt.IsZero() || !r.now().Before(r.expiresAt) {
		return domain.Caller{}, false
	}
	return r.cached, true
}

func (r *Resolver) store(c domain.Caller, ok bool) {
	ttl := r.ttl
	if !ok {
		ttl = r.failureTTL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ttl <= 0 {
		r.expiresAt = time.Time{}
		return
	}
	r.cached = c
	r.expiresAt = r.now().Add(ttl)
}

// lookup resolves the caller once. ok is false when the loopback fallback
// was used.
func (r *Resolver) lookup(ctx context.Context) (domain.Caller, bool) {
	name := r.name
	if name == "" {
		h, err := r.hostname()
		if err != nil {
			r.logger.WarnContext(ctx, "hostname lookup failed", slog.String("error.message", err.Error()))
			return domain.Caller{Name: "unknown", Address: domain.LoopbackAddress}, false
		}
		name = h
	}

	addrs, err := r.lookupHost(ctx, name)
	if err != nil || len(addrs) == 0 {
		attrs := []any{slog.String("host.name", name)}
		if err != nil {
			attrs = append(attrs, slog.String("error.message", err.Error()))
		}
		r.logger.WarnContext(ctx, "caller address unresolved, using loopback", attrs...)
		return domain.Caller{Name: name, Address: domain.LoopbackAddress}, false
	}
	return domain.Caller{Name: name, Address: pickAddress(addrs)}, true
}

// pickAddress prefers the first IPv4 address.
func pickAddress(addrs []string) string {
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	return addrs[0]
}
