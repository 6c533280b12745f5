package reachability

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReachability_ValidateEnvelope_RejectsOutOfRangeSourcePort(t *testing.T) {
	t.Parallel()
	coord, ft, _ := newTestCoordinator(t)

	from := Endpoint{IP: net.IPv4(198, 51, 100, 1), Port: 80}
	require.False(t, coord.validateEnvelope(from, Envelope{Nonce: 1}))
	require.Equal(t, 0, ft.sentCount())
}

func TestReachability_ValidateEnvelope_RejectsBlocklistedSource(t *testing.T) {
	t.Parallel()
	coord, ft, _ := newTestCoordinator(t)

	ip := net.IPv4(198, 51, 100, 1)
	ft.blocked[ip.String()] = true
	from := Endpoint{IP: ip, Port: 7000}
	require.False(t, coord.validateEnvelope(from, Envelope{Nonce: 1}))
}

func TestReachability_ValidateEnvelope_RejectsSourceSharingOurExternalSlash16(t *testing.T) {
	t.Parallel()
	coord, _, _ := newTestCoordinator(t)

	// fakeTransport.ext defaults to 203.0.113.1.
	from := Endpoint{IP: net.IPv4(203, 0, 113, 250), Port: 7000}
	require.False(t, coord.validateEnvelope(from, Envelope{Nonce: 1}))
}

func TestReachability_ValidateEnvelope_RejectsOutOfRangeEmbeddedPort(t *testing.T) {
	t.Parallel()
	coord, _, _ := newTestCoordinator(t)

	from := Endpoint{IP: net.IPv4(198, 51, 100, 1), Port: 7000}
	env := Envelope{Nonce: 1, IP: net.IPv4(198, 51, 100, 2), Port: 80}
	require.False(t, coord.validateEnvelope(from, env))
}

func TestReachability_ValidateEnvelope_RejectsEmbeddedIPSharingOurExternalSlash16(t *testing.T) {
	t.Parallel()
	coord, _, _ := newTestCoordinator(t)

	from := Endpoint{IP: net.IPv4(198, 51, 100, 1), Port: 7000}
	env := Envelope{Nonce: 1, IP: net.IPv4(203, 0, 113, 50), Port: 7000}
	require.False(t, coord.validateEnvelope(from, env))
}

func TestReachability_ValidateEnvelope_AcceptsWellFormedPacket(t *testing.T) {
	t.Parallel()
	coord, _, _ := newTestCoordinator(t)

	from := Endpoint{IP: net.IPv4(198, 51, 100, 1), Port: 7000}
	env := Envelope{Nonce: 1, IP: net.IPv4(198, 51, 100, 2), Port: 7001}
	require.True(t, coord.validateEnvelope(from, env))
}

func TestReachability_SameSlash16(t *testing.T) {
	t.Parallel()

	require.True(t, sameSlash16(net.IPv4(10, 1, 2, 3), net.IPv4(10, 1, 9, 9)))
	require.False(t, sameSlash16(net.IPv4(10, 1, 2, 3), net.IPv4(10, 2, 2, 3)))
}

func TestReachability_Config_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	require.Error(t, cfg.validate())

	cfg = Config{Logger: newTestLogger(t), Transport: newFakeTransport(), PacketBuilder: fakePacketBuilder{}}
	require.NoError(t, cfg.validate())
	require.NotNil(t, cfg.Clock, "validate must default a nil clock")
}
