package transport

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/netreach/prt/internal/reachability"
)

// Transport is the default reachability.Transport (§6.1): a UDP socket, the
// peer directory, the blocklist, and the external-IP estimator, wired
// together the way liveness.Manager wires its own UDPService/session-table
// collaborators.
type Transport struct {
	log      *slog.Logger
	conn     *UDPConn
	dir      *Directory
	block    Blocklist
	extIP    *externalIP
	introKey [32]byte

	onStatus func(reachability.Verdict)
}

func New(log *slog.Logger, conn *UDPConn, dir *Directory, block Blocklist, introKey [32]byte, onStatus func(reachability.Verdict)) *Transport {
	return &Transport{
		log:      log,
		conn:     conn,
		dir:      dir,
		block:    block,
		extIP:    newExternalIP(time.Minute),
		introKey: introKey,
		onStatus: onStatus,
	}
}

func (t *Transport) Send(dst reachability.Endpoint, pkt []byte) {
	_, err := t.conn.WriteTo(pkt, &net.UDPAddr{IP: dst.IP, Port: dst.Port})
	if err != nil {
		t.log.Debug("transport: send failed", "dst", dst, "error", err)
	}
}

func (t *Transport) ExternalIP() net.IP { return t.extIP.Get() }

// LearnExternalIP lets the reachability package's OK verdicts feed back the
// address Bob/Charlie actually observed, sharpening get_external_ip beyond
// the local-interface heuristic.
func (t *Transport) LearnExternalIP(ip net.IP) { t.extIP.Learn(ip) }

func (t *Transport) IntroKey() [32]byte { return t.introKey }

func (t *Transport) PeerState(remote reachability.Endpoint) (reachability.PeerSession, bool) {
	entry, ok := t.dir.Get(remote.IP, remote.Port)
	if !ok {
		return reachability.PeerSession{}, false
	}
	return reachability.PeerSession{
		CipherKey: entry.CipherKey,
		MACKey:    entry.MACKey,
		LastAck:   entry.LastAck,
		LastSend:  entry.LastSend,
	}, true
}

func (t *Transport) PickTestPeer(exclude reachability.Endpoint) (reachability.Endpoint, [32]byte, bool) {
	excludeKey := endpointKey(exclude.IP, exclude.Port)
	k, entry, ok := t.dir.PickOther(excludeKey)
	if !ok {
		return reachability.Endpoint{}, [32]byte{}, false
	}
	host, portStr, err := net.SplitHostPort(k)
	if err != nil {
		return reachability.Endpoint{}, [32]byte{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return reachability.Endpoint{}, [32]byte{}, false
	}
	return reachability.Endpoint{IP: net.ParseIP(host), Port: port}, entry.IntroKey, true
}

func (t *Transport) IsValid(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() || ip.IsMulticast() || isReserved(ip) {
		return false
	}
	if t.block != nil && t.block.Blocked(ip) {
		return false
	}
	return true
}

func (t *Transport) SetReachabilityStatus(v reachability.Verdict) {
	if t.onStatus != nil {
		t.onStatus(v)
	}
}
