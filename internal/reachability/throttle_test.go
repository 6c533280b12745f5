package reachability

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReachability_Throttle_AllowsUpToMaxThenBlocks(t *testing.T) {
	t.Parallel()

	th := NewThrottle(3, time.Minute)
	defer th.Stop()
	ip := net.IPv4(198, 51, 100, 7)

	require.False(t, th.ShouldThrottle(ip))
	require.False(t, th.ShouldThrottle(ip))
	require.False(t, th.ShouldThrottle(ip))
	require.True(t, th.ShouldThrottle(ip))
	require.True(t, th.ShouldThrottle(ip))
}

func TestReachability_Throttle_IndependentPerIP(t *testing.T) {
	t.Parallel()

	th := NewThrottle(1, time.Minute)
	defer th.Stop()
	a := net.IPv4(198, 51, 100, 1)
	b := net.IPv4(198, 51, 100, 2)

	require.False(t, th.ShouldThrottle(a))
	require.True(t, th.ShouldThrottle(a))
	require.False(t, th.ShouldThrottle(b))
}

func TestReachability_Throttle_NilIPNeverThrottled(t *testing.T) {
	t.Parallel()

	th := NewThrottle(1, time.Minute)
	defer th.Stop()
	require.False(t, th.ShouldThrottle(nil))
	require.False(t, th.ShouldThrottle(nil))
}
