// Package fat implements the FAT12/FAT16-compatible on-disk layout used by
// the Atari ST serial disk emulator: geometry, the File Allocation Table,
// and directory entries/tables.
//
// The layout here is deliberately narrower than a general-purpose FAT
// driver (see the dargueta/disko fat and fat8 packages this borrows its
// shape from): there is exactly one geometry family, and the cluster-to-
// sector mapping is the Atari driver's own peculiar offset rather than the
// textbook FAT formula.
package fat

import (
	"fmt"

	"github.com/arthurlm/atariserialdisk/internal/geometry"
)

// TOSVersion selects the Atari TOS release, which determines the total
// cluster count the emulated disk reports.
type TOSVersion string

const (
	TOSV100 TOSVersion = "V100"
	TOSV104 TOSVersion = "V104"
)

// PartitionType selects the partition family, which determines the sector
// size the emulated disk reports.
type PartitionType string

const (
	PartitionGEM PartitionType = "GEM"
	PartitionBGM PartitionType = "BGM"
)

// Layout is the pure, immutable geometry calculator described by the Atari
// driver's BIOS Parameter Block. All methods are total and side-effect free.
type Layout struct {
	tos                  TOSVersion
	partitionType        PartitionType
	rootDirectorySectors uint16
	clusterCount         uint16
	bytesPerSector       uint16
}

// NewLayout constructs a Layout for the given TOS version, partition type,
// and root directory size.
func NewLayout(tos TOSVersion, partitionType PartitionType, rootDirectorySectors uint16) (Layout, error) {
	preset, err := geometry.Lookup(string(tos), string(partitionType))
	if err != nil {
		return Layout{}, fmt.Errorf("fat: %w", err)
	}

	return Layout{
		tos:                  tos,
		partitionType:        partitionType,
		rootDirectorySectors: rootDirectorySectors,
		clusterCount:         uint16(preset.ClusterCount),
		bytesPerSector:       uint16(preset.BytesPerSector),
	}, nil
}

// MustNewLayout is like NewLayout but panics on error. Useful for tests and
// for constructing the default layout, where the TOS/partition pair is a
// compile-time constant known to be valid.
func MustNewLayout(tos TOSVersion, partitionType PartitionType, rootDirectorySectors uint16) Layout {
	layout, err := NewLayout(tos, partitionType, rootDirectorySectors)
	if err != nil {
		panic(err)
	}
	return layout
}

// DefaultLayout is TOS V104, partition type BGM, 8 root directory sectors —
// the default configuration from spec.
func DefaultLayout() Layout {
	return MustNewLayout(TOSV104, PartitionBGM, 8)
}

func (l Layout) TOS() TOSVersion             { return l.tos }
func (l Layout) PartitionType() PartitionType { return l.partitionType }
func (l Layout) ClusterCount() uint16         { return l.clusterCount }
func (l Layout) RootDirectorySectors() uint16 { return l.rootDirectorySectors }
func (l Layout) BytesPerSector() uint16       { return l.bytesPerSector }
func (l Layout) SectorsPerCluster() uint16    { return 2 }
func (l Layout) ReservedSector() uint16       { return l.SectorsPerCluster() * 2 }
func (l Layout) BytesPerCluster() uint16      { return l.BytesPerSector() * l.SectorsPerCluster() }
func (l Layout) BytesPerDisk() uint32 {
	return uint32(l.BytesPerCluster()) * uint32(l.clusterCount)
}

// Count1FATSectors is the number of sectors one copy of the FAT occupies.
func (l Layout) Count1FATSectors() uint16 {
	return l.clusterCount*2/l.bytesPerSector + 1
}

// Count2FATSectors mirrors Count1FATSectors: the Atari driver expects two
// identical FAT copies.
func (l Layout) Count2FATSectors() uint16 { return l.Count1FATSectors() }

// CountFATSectors is the combined size, in sectors, of both FAT copies.
func (l Layout) CountFATSectors() uint16 { return l.Count1FATSectors() + l.Count2FATSectors() }

// FirstFreeSector is the first sector index not occupied by the FAT copies
// or the root directory.
func (l Layout) FirstFreeSector() uint16 { return l.CountFATSectors() + l.rootDirectorySectors }

// FirstFreeCluster is FirstFreeSector expressed in clusters.
func (l Layout) FirstFreeCluster() uint16 { return l.FirstFreeSector() / l.SectorsPerCluster() }

// ConvertClusterToSector maps a cluster index to its first sector index.
//
// This offset is inherited bit-for-bit from the Atari driver program and is
// not the textbook FAT formula — do not "simplify" it.
func (l Layout) ConvertClusterToSector(cluster uint16) uint16 {
	sectorOffset := l.FirstFreeSector() - l.ReservedSector()
	return sectorOffset + cluster*l.SectorsPerCluster()
}

// BIOSParameterBlock encodes the 18-byte BPB the Atari driver requests at
// mount time: eight big-endian u16 fields followed by two flag bytes
// (0x00 = 12-bit FAT, 0x01 = one FAT).
func (l Layout) BIOSParameterBlock() [18]byte {
	var buf [18]byte
	putU16BE(buf[0:2], l.BytesPerSector())
	putU16BE(buf[2:4], l.SectorsPerCluster())
	putU16BE(buf[4:6], l.BytesPerCluster())
	putU16BE(buf[6:8], l.RootDirectorySectors())
	putU16BE(buf[8:10], l.Count1FATSectors())
	putU16BE(buf[10:12], l.Count2FATSectors())
	putU16BE(buf[12:14], l.FirstFreeSector())
	putU16BE(buf[14:16], l.clusterCount)
	buf[16] = 0x00 // 12-bit FAT
	buf[17] = 0x01 // one FAT
	return buf
}

func putU16BE(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}
