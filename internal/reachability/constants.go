package reachability

import "time"

// Tunable limits and timings. Values are the authoritative constants from
// the protocol definition; see DESIGN.md for provenance.
const (
	MaxRelayedPerTestAlice   = 9
	MaxRelayedPerTestBob     = 6
	MaxRelayedPerTestCharlie = 6

	MaxCharlieLifetime = 15 * time.Second
	MaxActiveTests     = 20
	MaxRecentTests     = 40

	MaxPerIP            = 12
	ThrottleCleanTime   = 10 * time.Minute
	ResendTimeout       = 4 * time.Second
	MaxTestTime         = 30 * time.Second
	CharlieRecentPeriod = 10 * time.Minute

	// MaxNonce is the inclusive upper bound of the 32-bit nonce space.
	MaxNonce = ^uint32(0)
)
