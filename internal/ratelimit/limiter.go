// Package ratelimit provides per-identity submission quotas backed by
// an injected counter store, so the same limiter works against an
// in-memory map (single instance) or Redis (shared deployment).
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"intake/internal/models"
	"intake/internal/observability"
)

// FailPolicy defines the behavior when the counter store is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if the store is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request if the store is unavailable.
	FailClosed
)

// CounterStore is an atomic check-and-increment counter keyed by
// identity. Incr records one hit for key and returns the number of hits
// within the trailing window, the new hit included. Implementations
// must be safe for concurrent use.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Pool is one quota pool: a limit enforced over a trailing window.
type Pool struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter enforces two independent quota pools: anonymous callers keyed
// by client IP and authenticated callers keyed by user identity.
type Limiter struct {
	store  CounterStore
	anon   Pool
	auth   Pool
	policy FailPolicy
}

// New returns a Limiter over the given store and pools.
func New(store CounterStore, anon, auth Pool, policy FailPolicy) *Limiter {
	return &Limiter{store: store, anon: anon, auth: auth, policy: policy}
}

// Allow records an admission attempt for the caller and reports whether
// it is within quota. On store failure the FailPolicy decides: FailOpen
// admits the request, FailClosed returns the error to the caller.
func (l *Limiter) Allow(ctx context.Context, identity models.Identity, clientIP string) (bool, error) {
	pool := l.anon
	key := fmt.Sprintf("%s:ip:%s", pool.Name, clientIP)
	if !identity.Anonymous() {
		pool = l.auth
		key = fmt.Sprintf("%s:user:%d", pool.Name, identity.UserID)
	}

	count, err := l.store.Incr(ctx, key, pool.Window)
	if err != nil {
		if l.policy == FailClosed {
			return false, err
		}
		return true, nil
	}

	allowed := count <= int64(pool.Limit)
	observability.RateLimitDecisions.WithLabelValues(pool.Name, strconv.FormatBool(allowed)).Inc()
	return allowed, nil
}
