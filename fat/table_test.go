package fat_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurlm/atariserialdisk/fat"
)

func TestFATReservationSequence(t *testing.T) {
	const n = 10
	table := fat.NewFAT(n)

	assert.Equal(t, fat.ClusterReserved, table.Get(0))
	assert.Equal(t, fat.ClusterReserved, table.Get(1))

	var reserved []uint16
	for {
		idx, ok := table.ReserveCluster()
		if !ok {
			break
		}
		reserved = append(reserved, idx)
	}

	require.Len(t, reserved, n-2)
	for _, idx := range reserved {
		assert.Equal(t, fat.ClusterEndOfChain, table.Get(idx))
	}
}

func TestFATExtendCluster(t *testing.T) {
	table := fat.NewFAT(10)
	tail, ok := table.ReserveCluster()
	require.True(t, ok)

	next, ok := table.ExtendCluster(tail)
	require.True(t, ok)

	assert.Equal(t, next, table.Get(tail))
	assert.Equal(t, fat.ClusterEndOfChain, table.Get(next))
}

func TestFATExtendClusterPanicsOnNonTail(t *testing.T) {
	table := fat.NewFAT(10)
	assert.Panics(t, func() {
		table.ExtendCluster(5)
	})
}

func TestFATMergeDataPanicsOnOddOffset(t *testing.T) {
	table := fat.NewFAT(10)
	assert.Panics(t, func() {
		table.MergeData(bytes.NewReader([]byte{0, 0}), 1, 2)
	})
}

func TestFATAsRawEmptyDisk(t *testing.T) {
	table := fat.NewFAT(10)
	raw := table.AsRaw()
	require.Len(t, raw, 20)
	assert.Equal(t, []byte{0x01, 0x00, 0x01, 0x00}, raw[:4])
	for _, b := range raw[4:] {
		assert.Equal(t, byte(0), b)
	}
}
