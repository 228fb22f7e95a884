package service

import "sync/atomic"

// RunGuard serializes sync runs. The rolling sync and the history backfill
// share one guard so they never drive the provider session concurrently:
// the server-side result buffer is per session and would race.
type RunGuard struct {
	active atomic.Bool
}

// NewRunGuard returns an idle guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{}
}

// TryAcquire claims the guard; false means a run is already active and the
// caller should decline, not queue.
func (g *RunGuard) TryAcquire() bool {
	return g.active.CompareAndSwap(false, true)
}

// Release frees the guard. Must be called in all exit paths of a run.
func (g *RunGuard) Release() {
	g.active.Store(false)
}
