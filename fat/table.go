package fat

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
)

// Reserved FAT cluster entry values.
const (
	ClusterFree       uint16 = 0x0000
	ClusterReserved   uint16 = 0x0001
	ClusterEndOfChain uint16 = 0xFFFF
)

// FAT is a flat ordered array of 16-bit cluster entries. Entries 0 and 1 are
// always reserved at construction.
//
// allocated mirrors, for every index, whether the entry is non-free. It is
// a cache for ReserveCluster's left-to-right scan, not a second source of
// truth — MergeData rebuilds it after a bulk overwrite, adapted from the
// teacher's drivers/common/allocatormap.go Allocator.
type FAT struct {
	entries   []uint16
	allocated bitmap.Bitmap
}

// NewFAT constructs a FAT with the given number of cluster entries. count
// must be at least 2; fewer makes entries 0 and 1 (always reserved) exceed
// the table, which is a programming error, not a recoverable one.
func NewFAT(count uint) *FAT {
	if count < 2 {
		panic(fmt.Sprintf("fat: table capacity must be at least 2, got %d", count))
	}

	entries := make([]uint16, count)
	entries[0] = ClusterReserved
	entries[1] = ClusterReserved

	allocated := bitmap.New(int(count))
	allocated.Set(0, true)
	allocated.Set(1, true)

	return &FAT{entries: entries, allocated: allocated}
}

// Len returns the number of cluster entries in the table.
func (f *FAT) Len() int { return len(f.entries) }

// Get returns the raw entry at the given cluster index.
func (f *FAT) Get(index uint16) uint16 { return f.entries[index] }

// ReserveCluster scans left-to-right for the first free entry, marks it
// end-of-chain, and returns its index. The second return value is false if
// the table has no free entry left.
func (f *FAT) ReserveCluster() (uint16, bool) {
	for i := 0; i < len(f.entries); i++ {
		if !f.allocated.Get(i) {
			f.entries[i] = ClusterEndOfChain
			f.allocated.Set(i, true)
			return uint16(i), true
		}
	}
	return 0, false
}

// ExtendCluster appends a newly reserved cluster to the chain ending at
// tail. tail must currently be end-of-chain; violating that precondition is
// a programming error and panics, per the protocol's failure model.
func (f *FAT) ExtendCluster(tail uint16) (uint16, bool) {
	if f.entries[tail] != ClusterEndOfChain {
		panic(fmt.Sprintf("fat: ExtendCluster(%#04x): not an end-of-chain entry", tail))
	}

	next, ok := f.ReserveCluster()
	if !ok {
		return 0, false
	}
	f.entries[tail] = next
	return next, true
}

// MergeData overwrites byteCount/2 entries starting at cluster index
// byteIndex/2 with little-endian u16s read from r. byteIndex and byteCount
// must both be even; violating that is a programming error and panics.
func (f *FAT) MergeData(r io.Reader, byteIndex, byteCount uint) error {
	if byteIndex%2 != 0 || byteCount%2 != 0 {
		panic(fmt.Sprintf("fat: MergeData: byteIndex=%d byteCount=%d must both be even", byteIndex, byteCount))
	}

	buf := make([]byte, byteCount)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("fat: MergeData: %w", err)
	}

	start := byteIndex / 2
	for i := uint(0); i < byteCount/2; i++ {
		value := binary.LittleEndian.Uint16(buf[i*2:])
		idx := start + i
		f.entries[idx] = value
		f.allocated.Set(int(idx), value != ClusterFree)
	}
	return nil
}

// AsRaw returns the entry array reinterpreted as little-endian bytes, of
// length 2*Len().
func (f *FAT) AsRaw() []byte {
	buf := make([]byte, len(f.entries)*2)
	for i, v := range f.entries {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}
