// Package wire implements the reachability protocol's wire format: a
// fixed-layout envelope (§6.4) wrapped in an HMAC-SHA256 frame, grounded on
// the teacher's ControlPacket.Marshal/UnmarshalControlPacket
// (liveness/packet.go) — same big-endian, fixed-offset style, generalized
// to a variable-length IP field and a trailing MAC instead of BFD's fixed
// 40-byte body.
package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"net"
)

// Kind distinguishes the four packet shapes a peer may send, so a receiver
// that has not yet decoded the envelope can pick the right verification key
// (§6.2: each builder output is keyed differently).
type Kind uint8

const (
	KindAliceToBob Kind = iota
	KindAliceToCharlie
	KindBobToAlice
	KindBobToCharlie
)

func (k Kind) String() string {
	switch k {
	case KindAliceToBob:
		return "alice_to_bob"
	case KindAliceToCharlie:
		return "alice_to_charlie"
	case KindBobToAlice:
		return "bob_to_alice"
	case KindBobToCharlie:
		return "bob_to_charlie"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

const (
	macSize      = sha256.Size
	introKeySize = 32
	// headerSize covers kind(1) + nonce(4) + port(2) + ip_size(1).
	headerSize = 1 + 4 + 2 + 1
)

// Payload is the decoded envelope body (§6.4), independent of which
// key verified its MAC.
type Payload struct {
	Kind     Kind
	Nonce    uint32
	Port     int    // 0 if absent
	IP       net.IP // nil, 4, or 16 bytes
	IntroKey [32]byte
}

// Marshal encodes p and appends an HMAC-SHA256 frame keyed by macKey. The
// field layout is big-endian and fixed-offset except for the variable-length
// IP, matching the teacher's packet.go style.
func Marshal(p Payload, macKey []byte) []byte {
	ipSize := len(p.IP)
	body := make([]byte, headerSize+ipSize+introKeySize)

	body[0] = byte(p.Kind)
	binary.BigEndian.PutUint32(body[1:5], p.Nonce)
	binary.BigEndian.PutUint16(body[5:7], uint16(p.Port))
	body[7] = byte(ipSize)
	copy(body[headerSize:headerSize+ipSize], p.IP)
	copy(body[headerSize+ipSize:], p.IntroKey[:])

	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)
	return append(body, mac.Sum(nil)...)
}

// Unmarshal verifies raw's trailing HMAC-SHA256 frame against macKey and, if
// valid, decodes the envelope. It enforces the §6.4 ip_size constraint (0, 4,
// or 16) but leaves the higher-level /16 and port-range checks to the
// coordinator's centralised validation.
func Unmarshal(raw []byte, macKey []byte) (Payload, error) {
	if len(raw) < headerSize+introKeySize+macSize {
		return Payload{}, fmt.Errorf("wire: short packet (%d bytes)", len(raw))
	}

	body, tag := raw[:len(raw)-macSize], raw[len(raw)-macSize:]
	want := hmac.New(sha256.New, macKey)
	want.Write(body)
	if !hmac.Equal(tag, want.Sum(nil)) {
		return Payload{}, fmt.Errorf("wire: mac mismatch")
	}

	ipSize := int(body[7])
	if ipSize != 0 && ipSize != net.IPv4len && ipSize != net.IPv6len {
		return Payload{}, fmt.Errorf("wire: invalid ip_size %d", ipSize)
	}
	if len(body) != headerSize+ipSize+introKeySize {
		return Payload{}, fmt.Errorf("wire: length mismatch for ip_size %d", ipSize)
	}

	p := Payload{
		Kind:  Kind(body[0]),
		Nonce: binary.BigEndian.Uint32(body[1:5]),
		Port:  int(binary.BigEndian.Uint16(body[5:7])),
	}
	if ipSize > 0 {
		p.IP = make(net.IP, ipSize)
		copy(p.IP, body[headerSize:headerSize+ipSize])
	}
	copy(p.IntroKey[:], body[headerSize+ipSize:])
	return p, nil
}

// PeekKind reads the Kind byte without verifying the MAC, so a receiver can
// choose which key to verify with before calling Unmarshal.
func PeekKind(raw []byte) (Kind, error) {
	if len(raw) < 1 {
		return 0, fmt.Errorf("wire: empty packet")
	}
	return Kind(raw[0]), nil
}

// PeekNonce reads the nonce field without verifying the MAC. The nonce is
// itself protected by the MAC that covers it (a forged nonce yields the
// wrong derived key and fails verification), so peeking it before deriving
// the per-packet key is safe.
func PeekNonce(raw []byte) (uint32, error) {
	if len(raw) < 5 {
		return 0, fmt.Errorf("wire: too short to contain a nonce")
	}
	return binary.BigEndian.Uint32(raw[1:5]), nil
}
