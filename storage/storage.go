// Package storage implements DiskStorage: the in-memory disk image that the
// serial state machine reads and writes at sector granularity, and that the
// host-tree importer populates.
package storage

import (
	"bytes"

	"github.com/arthurlm/atariserialdisk/fat"
)

// ROOTIndex is the sentinel cluster value denoting the fixed root directory,
// distinct from any allocatable cluster.
const ROOTIndex uint16 = 0

// blockKind distinguishes how a data-region sector's bytes should be
// interpreted.
type blockKind int

const (
	blockData blockKind = iota
	blockEntries
)

// dataBlock is one entry of the sparse data-sector map: either an opaque
// sector's worth of bytes, or a directory table promoted from one.
type dataBlock struct {
	kind  blockKind
	raw   []byte
	table *fat.Table
}

// DiskStorage owns the immutable layout, the FAT, the root directory (one
// table per root-directory sector), and a sparse map from data-sector index
// to either raw bytes or a promoted directory table.
//
// DiskStorage is not safe for concurrent use: exactly one actor — the
// serial state machine — mutates it at a time, per the single-writer
// topology this was built for.
type DiskStorage struct {
	layout  fat.Layout
	table   *fat.FAT
	root    []*fat.Table
	sectors map[uint16]*dataBlock
}

// New constructs an empty DiskStorage for the given layout: a fresh FAT
// sized to the layout's cluster count, an empty root directory table per
// root-directory sector, and no allocated data sectors.
func New(layout fat.Layout) *DiskStorage {
	root := make([]*fat.Table, layout.RootDirectorySectors())
	capacity := int(layout.BytesPerSector()) / fat.EntrySize
	for i := range root {
		root[i] = fat.NewTable(capacity)
	}

	return &DiskStorage{
		layout:  layout,
		table:   fat.NewFAT(uint(layout.ClusterCount())),
		root:    root,
		sectors: make(map[uint16]*dataBlock),
	}
}

// Layout returns the storage's immutable geometry.
func (s *DiskStorage) Layout() fat.Layout { return s.layout }

// FAT returns the storage's underlying cluster table, for callers (the
// importer, directory-entry placement) that need to reserve or extend
// chains directly.
func (s *DiskStorage) FAT() *fat.FAT { return s.table }

// ReadSector returns the bytes_per_sector-length contents of one sector,
// dispatched by region: FAT, root directory, or data.
func (s *DiskStorage) ReadSector(index uint16) []byte {
	bps := int(s.layout.BytesPerSector())

	switch {
	case index < s.layout.CountFATSectors():
		return s.readFATSector(index)
	case index < s.layout.FirstFreeSector():
		real := index - s.layout.CountFATSectors()
		return s.root[real].AsRaw()
	default:
		block, ok := s.sectors[index]
		if !ok {
			return make([]byte, bps)
		}
		if block.kind == blockEntries {
			return block.table.AsRaw()
		}
		return block.raw
	}
}

// WriteSector applies the bytes_per_sector-length contents of one sector,
// dispatched the same way as ReadSector. data must be exactly
// bytes_per_sector bytes.
func (s *DiskStorage) WriteSector(index uint16, data []byte) error {
	switch {
	case index < s.layout.CountFATSectors():
		return s.writeFATSector(index, data)
	case index < s.layout.FirstFreeSector():
		real := index - s.layout.CountFATSectors()
		capacity := len(data) / fat.EntrySize
		s.root[real] = fat.TableFromRaw(data[:capacity*fat.EntrySize])
		return nil
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		s.sectors[index] = &dataBlock{kind: blockData, raw: raw}
		return nil
	}
}

// ReadSectors reads count contiguous sectors starting at index, concatenated
// in order.
func (s *DiskStorage) ReadSectors(index, count uint16) []byte {
	bps := int(s.layout.BytesPerSector())
	buf := make([]byte, 0, bps*int(count))
	for i := uint16(0); i < count; i++ {
		buf = append(buf, s.ReadSector(index+i)...)
	}
	return buf
}

// WriteSectors writes count contiguous sectors starting at index from data,
// which must be exactly count*bytes_per_sector bytes.
func (s *DiskStorage) WriteSectors(index, count uint16, data []byte) error {
	bps := int(s.layout.BytesPerSector())
	for i := uint16(0); i < count; i++ {
		chunk := data[int(i)*bps : int(i+1)*bps]
		if err := s.WriteSector(index+i, chunk); err != nil {
			return err
		}
	}
	return nil
}

// readFATSector reads one sector's worth of the FAT's raw bytes, aliasing
// both FAT copies to the same underlying array and zero-padding past the
// end of the real entry data.
func (s *DiskStorage) readFATSector(index uint16) []byte {
	bps := int(s.layout.BytesPerSector())
	real := index % s.layout.Count1FATSectors()
	offset := int(real) * bps

	raw := s.table.AsRaw()
	buf := make([]byte, bps)
	if offset < len(raw) {
		copy(buf, raw[offset:])
	}
	return buf
}

// writeFATSector overwrites one sector's worth of the single backing FAT
// array. Both FAT copy ranges alias the same array, matching the wire
// protocol's "two copies, one source of truth" contract.
func (s *DiskStorage) writeFATSector(index uint16, data []byte) error {
	bps := int(s.layout.BytesPerSector())
	real := index % s.layout.Count1FATSectors()
	offset := uint(real) * uint(bps)

	rawLen := uint(s.table.Len() * 2)
	if offset >= rawLen {
		return nil
	}

	byteCount := uint(bps)
	if offset+byteCount > rawLen {
		byteCount = rawLen - offset
		byteCount -= byteCount % 2
	}
	if byteCount == 0 {
		return nil
	}

	return s.table.MergeData(bytes.NewReader(data[:byteCount]), offset, byteCount)
}
