package wire

import "net"

// Builder is the default reachability.PacketBuilder (§6.2): it frames each
// of the four message shapes with the key appropriate to how the recipient
// can verify it — an established session's MAC key when one exists, the
// recipient's own published intro-key otherwise.
type Builder struct{}

func NewBuilder() Builder { return Builder{} }

// AliceToBob is verified by Bob against his session with Alice, so it is
// keyed with the session's own MAC key.
func (Builder) AliceToBob(nonce uint32, aliceIntroKey [32]byte, bobCipherKey, bobMACKey []byte) []byte {
	p := Payload{Kind: KindAliceToBob, Nonce: nonce, IntroKey: aliceIntroKey}
	return Marshal(p, DerivePacketMACKey(bobMACKey, nonce))
}

// AliceToCharlie is verified by Charlie against her own published intro-key,
// since Alice has no session with her yet.
func (Builder) AliceToCharlie(nonce uint32, aliceIntroKey, charlieIntroKey [32]byte) []byte {
	p := Payload{Kind: KindAliceToCharlie, Nonce: nonce, IntroKey: aliceIntroKey}
	return Marshal(p, DerivePacketMACKey(charlieIntroKey[:], nonce))
}

// BobToAlice is verified by Alice against her own published intro-key.
// carriedIntroKey is whichever peer's intro-key Bob is forwarding
// (typically Charlie's); recipientIntroKey keys the frame.
func (Builder) BobToAlice(nonce uint32, reflectIP net.IP, reflectPort int, carriedIntroKey [32]byte, recipientIntroKey [32]byte) []byte {
	p := Payload{Kind: KindBobToAlice, Nonce: nonce, Port: reflectPort, IP: reflectIP, IntroKey: carriedIntroKey}
	return Marshal(p, DerivePacketMACKey(recipientIntroKey[:], nonce))
}

// BobToCharlie is verified by Charlie against her session with Bob.
func (Builder) BobToCharlie(nonce uint32, aliceIP net.IP, alicePort int, aliceIntroKey [32]byte, charlieCipherKey, charlieMACKey []byte) []byte {
	p := Payload{Kind: KindBobToCharlie, Nonce: nonce, Port: alicePort, IP: aliceIP, IntroKey: aliceIntroKey}
	return Marshal(p, DerivePacketMACKey(charlieMACKey, nonce))
}
