// Package mutgate provides a single-flight gate over a mutation surface.
// The backing store has no native transactions, so mutating operations
// from one session must run strictly one at a time; the gate makes that
// mutual-exclusion contract explicit and testable instead of burying it
// in a shared boolean. It only reduces the race window between sessions —
// cross-session correctness is guaranteed by store-side state checks.
package mutgate

import (
	"sync/atomic"

	"github.com/go-faster/errors"
)

// ErrBusy is returned when a mutation is attempted while another one is
// still in flight.
var ErrBusy = errors.New("another mutation is in flight")

// Gate is a non-blocking mutual-exclusion gate. The zero value is ready
// to use.
type Gate struct {
	busy atomic.Bool
}

// TryAcquire claims the gate, returning false when it is already held.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the gate. Calling Release on an unheld gate is a no-op.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// InFlight reports whether a mutation currently holds the gate.
func (g *Gate) InFlight() bool {
	return g.busy.Load()
}

// Do runs fn while holding the gate, or returns ErrBusy without running
// it. The gate is released when fn returns, even on panic.
func (g *Gate) Do(fn func() error) error {
	if !g.TryAcquire() {
		return ErrBusy
	}
	defer g.Release()
	return fn()
}
