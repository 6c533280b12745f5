package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransport_Directory_UpsertAndGet(t *testing.T) {
	t.Parallel()
	d := NewDirectory(time.Minute)
	defer d.Stop()

	ip := net.IPv4(10, 0, 0, 1)
	entry := &PeerEntry{CipherKey: []byte("c"), MACKey: []byte("m")}
	d.Upsert(ip, 9000, entry)

	got, ok := d.Get(ip, 9000)
	require.True(t, ok)
	require.Same(t, entry, got)

	_, ok = d.Get(ip, 9001)
	require.False(t, ok)
}

func TestTransport_Directory_UpsertOverwritesWithoutDuplicatingOrder(t *testing.T) {
	t.Parallel()
	d := NewDirectory(time.Minute)
	defer d.Stop()

	ip := net.IPv4(10, 0, 0, 1)
	d.Upsert(ip, 9000, &PeerEntry{MACKey: []byte("v1")})
	d.Upsert(ip, 9000, &PeerEntry{MACKey: []byte("v2")})

	got, ok := d.Get(ip, 9000)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got.MACKey)

	k, _, ok := d.PickOther("")
	require.True(t, ok)
	require.Equal(t, endpointKey(ip, 9000), k)
	require.Len(t, d.order, 1)
}

func TestTransport_Directory_PickOtherSkipsExcludedAndRoundRobins(t *testing.T) {
	t.Parallel()
	d := NewDirectory(time.Minute)
	defer d.Stop()

	a := net.IPv4(10, 0, 0, 1)
	b := net.IPv4(10, 0, 0, 2)
	d.Upsert(a, 1, &PeerEntry{})
	d.Upsert(b, 2, &PeerEntry{})

	k1, _, ok := d.PickOther(endpointKey(a, 1))
	require.True(t, ok)
	require.Equal(t, endpointKey(b, 2), k1)

	k2, _, ok := d.PickOther("")
	require.True(t, ok)
	require.Equal(t, endpointKey(a, 1), k2)

	k3, _, ok := d.PickOther("")
	require.True(t, ok)
	require.Equal(t, endpointKey(b, 2), k3)
}

func TestTransport_Directory_PickOtherEmptyReturnsFalse(t *testing.T) {
	t.Parallel()
	d := NewDirectory(time.Minute)
	defer d.Stop()

	_, _, ok := d.PickOther("")
	require.False(t, ok)
}
