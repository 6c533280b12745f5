package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DerivePacketMACKey derives a 32-byte MAC key scoped to one nonce from a
// long-lived session or intro key, so the long-lived key is never used as a
// MAC key itself and two tests (two nonces) never share a MAC key. Every
// packet of one test, retransmissions included, gets the same derived key
// for a given base key. The teacher's BFD-like packets carry no cryptographic framing
// at all; this is new domain logic grounded on the §6.4 envelope's MAC-key
// field and on the rest of the retrieval pack's use of golang.org/x/crypto.
func DerivePacketMACKey(base []byte, nonce uint32) []byte {
	var salt [4]byte
	binary.BigEndian.PutUint32(salt[:], nonce)

	r := hkdf.New(sha256.New, base, salt[:], []byte("prt-packet-mac"))
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		// hkdf.New with sha256 only fails to read if 32 bytes exceeds its
		// expansion limit (255*32), which it never does here.
		panic(err)
	}
	return out
}
