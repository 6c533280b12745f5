package reachability

import (
	"net"
	"strconv"
	"time"
)

// Endpoint is a UDP source/destination pair. It stands in for the wire
// transport's notion of a remote address without pulling net.UDPAddr's
// zone/serialization concerns into the coordinator.
type Endpoint struct {
	IP   net.IP
	Port int
}

func (e Endpoint) Equal(o Endpoint) bool {
	return e.Port == o.Port && e.IP.Equal(o.IP)
}

func (e Endpoint) IsZero() bool {
	return e.IP == nil && e.Port == 0
}

func (e Endpoint) String() string {
	if e.IP == nil {
		return "<nil>:0"
	}
	return net.JoinHostPort(e.IP.String(), strconv.Itoa(e.Port))
}

// PeerSession is what the transport reports for an already-connected peer
// (§6.1 get_peer_state). Ack/Send timestamps back the known-Charlie
// short-circuit in the Alice driver (§4.1).
type PeerSession struct {
	CipherKey []byte
	MACKey    []byte
	LastAck   time.Time
	LastSend  time.Time
}

// Transport is the external UDP/session collaborator described in spec §6.1.
// This package depends only on this interface; internal/transport provides
// the concrete default.
type Transport interface {
	// Send is a fire-and-forget UDP send of an opaque, already-framed packet.
	Send(dst Endpoint, pkt []byte)

	// ExternalIP is our best current estimate of our own public IP.
	ExternalIP() net.IP

	// IntroKey is our long-lived test key, published so unacquainted peers
	// can reach us.
	IntroKey() [32]byte

	// PeerState reports the session (if any) we already have with remote.
	PeerState(remote Endpoint) (PeerSession, bool)

	// PickTestPeer selects a test-capable peer not colocated with exclude,
	// returning its endpoint and published intro-key. This folds in the
	// router-info resolution spec §6.1 calls get_target_address, since this
	// module has no separate router-info indirection to resolve through.
	PickTestPeer(exclude Endpoint) (Endpoint, [32]byte, bool)

	// IsValid rejects loopback, unspecified, multicast, and reserved
	// addresses, and (per §6.4) blocklisted ones.
	IsValid(ip net.IP) bool

	// SetReachabilityStatus delivers the final verdict for the current
	// locally-initiated test (C7).
	SetReachabilityStatus(v Verdict)
}

// PacketBuilder is the external wire/crypto collaborator described in
// spec §6.2. internal/wire provides the concrete default.
//
// The four shapes below are reused across role pairs exactly as the spec's
// wire envelope (§6.4) is role-agnostic: BobToAlice is also used to carry a
// Charlie→Alice reply (same reflected-endpoint shape), and BobToCharlie is
// also used for Charlie's acknowledgement back to Bob (same
// endpoint+intro-key shape).
type PacketBuilder interface {
	AliceToBob(nonce uint32, aliceIntroKey [32]byte, bobCipherKey, bobMACKey []byte) []byte
	AliceToCharlie(nonce uint32, aliceIntroKey, charlieIntroKey [32]byte) []byte
	BobToAlice(nonce uint32, reflectIP net.IP, reflectPort int, carriedIntroKey [32]byte, recipientIntroKey [32]byte) []byte
	BobToCharlie(nonce uint32, aliceIP net.IP, alicePort int, aliceIntroKey [32]byte, charlieCipherKey, charlieMACKey []byte) []byte
}

// Envelope is the decoded form of the wire payload described in §6.4,
// handed to the coordinator by the transport after framing/authentication
// has already been stripped away. Coordinator code never touches raw bytes
// or keys directly.
type Envelope struct {
	Nonce    uint32
	Port     int    // 0 if absent
	IP       net.IP // nil, 4, or 16 bytes
	IntroKey [32]byte
}
