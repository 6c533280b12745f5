// Package transport provides the default reachability.Transport: a plain
// UDP socket, a ttlcache-backed peer/intro-key directory, and an in-memory
// blocklist, wired together the way the teacher wires its liveness
// transport.
package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

// UDPConn wraps a UDP socket and preconfigures IPv4 control messages so the
// local destination IP and arrival interface are available on every read —
// grounded directly on the teacher's liveness.UDPConn (liveness/udp.go).
// ReadFrom returns the local IP and interface name; the Receiver does not
// use them, and the external-IP estimate reads local interface addresses
// directly. Sends here are plain (no per-send interface/src override).
type UDPConn struct {
	raw *net.UDPConn
	pc4 *ipv4.PacketConn
}

// ListenUDP binds to bindIP:port using IPv4 and returns a configured UDPConn.
func ListenUDP(bindIP string, port int) (*UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", bindIP, port))
	if err != nil {
		return nil, err
	}
	raw, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}
	u, err := NewUDPConn(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return u, nil
}

// NewUDPConn wraps an existing *net.UDPConn and preconfigures IPv4 control
// messages.
func NewUDPConn(raw *net.UDPConn) (*UDPConn, error) {
	u := &UDPConn{raw: raw, pc4: ipv4.NewPacketConn(raw)}
	if err := u.pc4.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst|ipv4.FlagSrc, true); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *UDPConn) Close() error { return u.raw.Close() }

// ReadFrom reads a packet and returns (n, remote, localIP=dst, ifname).
func (u *UDPConn) ReadFrom(buf []byte) (n int, remote *net.UDPAddr, localIP net.IP, ifname string, err error) {
	n, cm4, raddr, err := u.pc4.ReadFrom(buf)
	if err != nil {
		return 0, nil, nil, "", err
	}
	if ua, ok := raddr.(*net.UDPAddr); ok {
		remote = ua
	}
	if cm4 != nil {
		if cm4.Dst != nil {
			localIP = cm4.Dst
		}
		if cm4.IfIndex != 0 {
			if ifi, _ := net.InterfaceByIndex(cm4.IfIndex); ifi != nil {
				ifname = ifi.Name
			}
		}
	}
	return n, remote, localIP, ifname, nil
}

// WriteTo sends pkt to dst.
func (u *UDPConn) WriteTo(pkt []byte, dst *net.UDPAddr) (int, error) {
	return u.raw.WriteToUDP(pkt, dst)
}

func (u *UDPConn) SetReadDeadline(t time.Time) error { return u.raw.SetReadDeadline(t) }

func (u *UDPConn) LocalAddr() net.Addr { return u.raw.LocalAddr() }
