package reachability

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReachability_Record_RelayCap(t *testing.T) {
	t.Parallel()

	require.Equal(t, MaxRelayedPerTestAlice, (&TestRecord{Role: RoleAlice}).RelayCap())
	require.Equal(t, MaxRelayedPerTestBob, (&TestRecord{Role: RoleBob}).RelayCap())
	require.Equal(t, MaxRelayedPerTestCharlie, (&TestRecord{Role: RoleCharlie}).RelayCap())
}

func TestReachability_Record_Expired(t *testing.T) {
	t.Parallel()

	begin := time.Now()
	rec := &TestRecord{BeginTime: begin}

	require.False(t, rec.Expired(begin.Add(MaxTestTime-time.Second)))
	require.True(t, rec.Expired(begin.Add(MaxTestTime+time.Second)))
}

func TestReachability_Record_Endpoints(t *testing.T) {
	t.Parallel()

	rec := &TestRecord{
		AliceIP: net.IPv4(10, 0, 0, 1), AlicePort: 1,
		BobIP: net.IPv4(10, 0, 0, 2), BobPort: 2,
		CharlieIP: net.IPv4(10, 0, 0, 3), CharliePort: 3,
	}
	require.Equal(t, Endpoint{IP: net.IPv4(10, 0, 0, 1), Port: 1}, rec.AliceEndpoint())
	require.Equal(t, Endpoint{IP: net.IPv4(10, 0, 0, 2), Port: 2}, rec.BobEndpoint())
	require.Equal(t, Endpoint{IP: net.IPv4(10, 0, 0, 3), Port: 3}, rec.CharlieEndpoint())
}

func TestReachability_Role_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "alice", RoleAlice.String())
	require.Equal(t, "bob", RoleBob.String())
	require.Equal(t, "charlie", RoleCharlie.String())
	require.Contains(t, Role(99).String(), "unknown")
}

func TestReachability_Verdict_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ok", VerdictOK.String())
	require.Equal(t, "different", VerdictDifferent.String())
	require.Equal(t, "reject_unsolicited", VerdictRejectUnsolicited.String())
	require.Equal(t, "unknown", VerdictUnknown.String())
}

func TestReachability_Endpoint_Equal(t *testing.T) {
	t.Parallel()

	a := Endpoint{IP: net.IPv4(1, 2, 3, 4), Port: 100}
	b := Endpoint{IP: net.IPv4(1, 2, 3, 4), Port: 100}
	c := Endpoint{IP: net.IPv4(1, 2, 3, 5), Port: 100}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.True(t, Endpoint{}.IsZero())
	require.False(t, a.IsZero())
}
