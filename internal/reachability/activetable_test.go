package reachability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReachability_ActiveTestTable_InsertRespectsCapacity(t *testing.T) {
	t.Parallel()

	tbl := NewActiveTestTable(2, time.Minute)
	defer tbl.Stop()

	require.True(t, tbl.Insert(&TestRecord{Nonce: 1}))
	require.True(t, tbl.Insert(&TestRecord{Nonce: 2}))
	require.False(t, tbl.Insert(&TestRecord{Nonce: 3}))
	require.Equal(t, 2, tbl.Len())
}

func TestReachability_ActiveTestTable_GetAndRemove(t *testing.T) {
	t.Parallel()

	tbl := NewActiveTestTable(5, time.Minute)
	defer tbl.Stop()

	rec := &TestRecord{Nonce: 42}
	require.True(t, tbl.Insert(rec))

	got, ok := tbl.Get(42)
	require.True(t, ok)
	require.Same(t, rec, got)

	tbl.Remove(42)
	_, ok = tbl.Get(42)
	require.False(t, ok)
	require.Equal(t, 0, tbl.Len())
}

func TestReachability_ActiveTestTable_RemoveAbsentIsNoop(t *testing.T) {
	t.Parallel()

	tbl := NewActiveTestTable(5, time.Minute)
	defer tbl.Stop()

	require.NotPanics(t, func() { tbl.Remove(999) })
	require.Equal(t, 0, tbl.Len())
}

func TestReachability_ActiveTestTable_RemovalFreesCapacity(t *testing.T) {
	t.Parallel()

	tbl := NewActiveTestTable(1, time.Minute)
	defer tbl.Stop()

	require.True(t, tbl.Insert(&TestRecord{Nonce: 1}))
	require.False(t, tbl.Insert(&TestRecord{Nonce: 2}))

	tbl.Remove(1)
	require.True(t, tbl.Insert(&TestRecord{Nonce: 2}))
}
