package reachability

import "errors"

var (
	errAlreadyRunning = errors.New("reachability: a test is already in flight")
	errSelfPeer       = errors.New("reachability: refusing to test through a peer sharing our external IP")
)
