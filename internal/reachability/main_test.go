package reachability

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport is a minimal, goroutine-safe reachability.Transport double.
// Sent packets are recorded so tests can assert on them without a real
// socket, mirroring the teacher's MockRouteReaderWriter style.
type fakeTransport struct {
	mu  sync.Mutex
	ext net.IP

	sent     []sentPacket
	sessions map[string]PeerSession
	peers    map[string][32]byte // endpoint key -> intro key, for PickTestPeer
	blocked  map[string]bool

	statuses []Verdict
}

type sentPacket struct {
	dst Endpoint
	pkt []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		ext:      net.IPv4(203, 0, 113, 1),
		sessions: map[string]PeerSession{},
		peers:    map[string][32]byte{},
		blocked:  map[string]bool{},
	}
}

func epKey(e Endpoint) string { return e.String() }

func (f *fakeTransport) Send(dst Endpoint, pkt []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), pkt...)
	f.sent = append(f.sent, sentPacket{dst: dst, pkt: cp})
}

func (f *fakeTransport) ExternalIP() net.IP { return f.ext }

func (f *fakeTransport) IntroKey() [32]byte { return [32]byte{0xAA} }

func (f *fakeTransport) PeerState(remote Endpoint) (PeerSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[epKey(remote)]
	return s, ok
}

func (f *fakeTransport) setSession(ep Endpoint, s PeerSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[epKey(ep)] = s
}

func (f *fakeTransport) PickTestPeer(exclude Endpoint) (Endpoint, [32]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, ik := range f.peers {
		if k == epKey(exclude) {
			continue
		}
		host, portStr, err := net.SplitHostPort(k)
		if err != nil {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		return Endpoint{IP: net.ParseIP(host), Port: port}, ik, true
	}
	return Endpoint{}, [32]byte{}, false
}

func (f *fakeTransport) addPeer(ep Endpoint, introKey [32]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[epKey(ep)] = introKey
}

func (f *fakeTransport) IsValid(ip net.IP) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() || ip.IsMulticast() {
		return false
	}
	return !f.blocked[ip.String()]
}

func (f *fakeTransport) SetReachabilityStatus(v Verdict) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, v)
}

func (f *fakeTransport) lastStatus() (Verdict, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return 0, false
	}
	return f.statuses[len(f.statuses)-1], true
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) lastSent() (sentPacket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentPacket{}, false
	}
	return f.sent[len(f.sent)-1], true
}

// fakePacketBuilder records its arguments as an opaque, introspectable blob
// instead of producing real wire bytes, so reachability tests don't need to
// depend on internal/wire.
type fakePacketBuilder struct{}

type fakePacket struct {
	kind        string
	nonce       uint32
	reflectIP   net.IP
	reflectPort int
	introKey    [32]byte
}

func encodeFakePacket(p fakePacket) []byte {
	return []byte(p.kind)
}

func (fakePacketBuilder) AliceToBob(nonce uint32, aliceIntroKey [32]byte, bobCipherKey, bobMACKey []byte) []byte {
	return encodeFakePacket(fakePacket{kind: "alice_to_bob", nonce: nonce, introKey: aliceIntroKey})
}

func (fakePacketBuilder) AliceToCharlie(nonce uint32, aliceIntroKey, charlieIntroKey [32]byte) []byte {
	return encodeFakePacket(fakePacket{kind: "alice_to_charlie", nonce: nonce, introKey: aliceIntroKey})
}

func (fakePacketBuilder) BobToAlice(nonce uint32, reflectIP net.IP, reflectPort int, carriedIntroKey, recipientIntroKey [32]byte) []byte {
	return encodeFakePacket(fakePacket{kind: "bob_to_alice", nonce: nonce, reflectIP: reflectIP, reflectPort: reflectPort, introKey: carriedIntroKey})
}

func (fakePacketBuilder) BobToCharlie(nonce uint32, aliceIP net.IP, alicePort int, aliceIntroKey [32]byte, charlieCipherKey, charlieMACKey []byte) []byte {
	return encodeFakePacket(fakePacket{kind: "bob_to_charlie", nonce: nonce, reflectIP: aliceIP, reflectPort: alicePort, introKey: aliceIntroKey})
}

func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
