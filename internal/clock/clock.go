// Package clock re-exports clockwork.Clock so the rest of this module
// depends on a single, narrow seam instead of importing clockwork
// directly everywhere. Production code uses the real clock; tests use a
// FakeClock to drive timer-based state transitions without sleeping.
package clock

import "github.com/jonboulle/clockwork"

// Clock is an alias of clockwork.Clock.
type Clock = clockwork.Clock

// FakeClock is an alias of clockwork.FakeClock.
type FakeClock = clockwork.FakeClock

// New returns the real, wall-clock implementation.
func New() Clock { return clockwork.NewRealClock() }

// NewFake returns a FakeClock pinned at an arbitrary fixed instant.
// Tests advance it explicitly with Advance/BlockUntil.
func NewFake() FakeClock { return clockwork.NewFakeClock() }
