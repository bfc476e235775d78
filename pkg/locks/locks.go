// Package locks provides the per-entity serialization points used to
// close the read-evaluate-write race on group resolution. The engine
// takes a lock keyed by group ID around Respond and
// EvaluateGroupCompletion; single-process deployments use the in-memory
// locker, multi-node deployments the Redis one.
package locks

import "context"

// Locker serializes work behind a named lock. Acquire blocks until the
// lock is held or ctx is done, and returns the release function.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
