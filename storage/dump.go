package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/arthurlm/atariserialdisk/fat"
)

// gobSector is the serializable form of one data-region dataBlock.
type gobSector struct {
	Index uint16
	Kind  blockKind
	Raw   []byte
}

// gobImage is the serializable snapshot of a DiskStorage. The format is
// implementation-internal per spec and only needs to round-trip, so it is
// a direct field-for-field mirror rather than a wire-compatible layout.
type gobImage struct {
	TOS                  string
	PartitionType        string
	RootDirectorySectors uint16
	FATRaw               []byte
	RootRaw              [][]byte
	Sectors              []gobSector
}

func (s *DiskStorage) snapshot() gobImage {
	root := make([][]byte, len(s.root))
	for i, table := range s.root {
		root[i] = table.AsRaw()
	}

	sectors := make([]gobSector, 0, len(s.sectors))
	for index, block := range s.sectors {
		raw := block.raw
		if block.kind == blockEntries {
			raw = block.table.AsRaw()
		}
		sectors = append(sectors, gobSector{Index: index, Kind: block.kind, Raw: raw})
	}

	return gobImage{
		TOS:                  string(s.layout.TOS()),
		PartitionType:        string(s.layout.PartitionType()),
		RootDirectorySectors: s.layout.RootDirectorySectors(),
		FATRaw:               s.table.AsRaw(),
		RootRaw:              root,
		Sectors:              sectors,
	}
}

func fromSnapshot(img gobImage) (*DiskStorage, error) {
	layout, err := fat.NewLayout(fat.TOSVersion(img.TOS), fat.PartitionType(img.PartitionType), img.RootDirectorySectors)
	if err != nil {
		return nil, fmt.Errorf("storage: restore layout: %w", err)
	}

	s := New(layout)

	if len(img.FATRaw) > 0 {
		if err := s.table.MergeData(bytes.NewReader(img.FATRaw), 0, uint(len(img.FATRaw))); err != nil {
			return nil, fmt.Errorf("storage: restore FAT: %w", err)
		}
	}

	for i, raw := range img.RootRaw {
		if i >= len(s.root) {
			break
		}
		s.root[i] = fat.TableFromRaw(raw)
	}

	for _, sec := range img.Sectors {
		if sec.Kind == blockEntries {
			s.sectors[sec.Index] = &dataBlock{kind: blockEntries, table: fat.TableFromRaw(sec.Raw)}
			continue
		}
		raw := make([]byte, len(sec.Raw))
		copy(raw, sec.Raw)
		s.sectors[sec.Index] = &dataBlock{kind: blockData, raw: raw}
	}

	return s, nil
}

// countingWriter tracks the number of bytes successfully written to the
// underlying stream, the way the teacher's compression package does for
// CompressImage's return value.
type countingWriter struct {
	w            io.Writer
	bytesWritten int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	if err == nil {
		c.bytesWritten += int64(n)
	}
	return n, err
}

// Dump serializes the storage's full state — layout, FAT, root directory,
// and sector map — to w as a gob stream wrapped in best-compression gzip.
// The format is implementation-internal: it is never exchanged with the
// Atari, only with Load.
func (s *DiskStorage) Dump(w io.Writer) (int64, error) {
	counting := &countingWriter{w: w}

	gz, err := gzip.NewWriterLevel(counting, gzip.BestCompression)
	if err != nil {
		return 0, fmt.Errorf("storage: create gzip writer: %w", err)
	}

	if err := gob.NewEncoder(gz).Encode(s.snapshot()); err != nil {
		gz.Close()
		return 0, fmt.Errorf("storage: encode disk image: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("storage: flush disk image: %w", err)
	}
	return counting.bytesWritten, nil
}

// Load reconstructs a DiskStorage from a stream previously written by Dump.
func Load(r io.Reader) (*DiskStorage, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("storage: open disk image: %w", err)
	}
	defer gz.Close()

	var img gobImage
	if err := gob.NewDecoder(gz).Decode(&img); err != nil {
		return nil, fmt.Errorf("storage: decode disk image: %w", err)
	}
	return fromSnapshot(img)
}

// ExtractModifiedFiles walks the root directory and every reachable cluster
// chain, reconstructing a host directory tree at dst from directory-entry
// metadata and cluster-chain data. It is the offline counterpart to
// ImportPath: import lays a host tree into storage, this lays storage back
// onto the host filesystem for inspecting what the Atari wrote during a
// session.
func (s *DiskStorage) ExtractModifiedFiles(dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("storage: create output dir %q: %w", dst, err)
	}
	return s.extractTable(s.rootEntries(), dst, 0)
}

// rootEntries concatenates every root-directory-sector table's entries into
// a single ordered sequence, mirroring how the root directory behaves as
// one logical directory split across fixed sectors.
func (s *DiskStorage) rootEntries() []fat.Dirent {
	var entries []fat.Dirent
	for _, table := range s.root {
		for i := 0; i < table.Len(); i++ {
			entries = append(entries, table.Get(i))
		}
	}
	return entries
}

// extractTable writes every file entry in entries to dst and recurses into
// every directory entry, skipping "." and "..". skipDotEntries controls
// whether the first two entries (always "." and "..") are skipped; it is 0
// for the root (which has no dot entries) and 2 for any subdirectory.
func (s *DiskStorage) extractTable(entries []fat.Dirent, dst string, skipDotEntries int) error {
	for i, entry := range entries {
		if i < skipDotEntries {
			continue
		}
		if entry.Name == "" {
			continue
		}

		filename := entry.Name
		if entry.Ext != "" {
			filename += "." + entry.Ext
		}
		outPath := filepath.Join(dst, filename)

		if entry.IsDir() {
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return fmt.Errorf("storage: create dir %q: %w", outPath, err)
			}
			children := s.readDirTable(entry.Cluster)
			if err := s.extractTable(children, outPath, 2); err != nil {
				return err
			}
			continue
		}

		content := s.readFileChain(entry.Cluster, entry.Size)
		if err := os.WriteFile(outPath, content, 0o644); err != nil {
			return fmt.Errorf("storage: write file %q: %w", outPath, err)
		}
	}
	return nil
}

// readDirTable follows cluster's FAT chain and returns the directory entries
// stored in each cluster's two data sectors, whichever of Data or Entries
// they currently hold.
func (s *DiskStorage) readDirTable(cluster uint16) []fat.Dirent {
	var entries []fat.Dirent
	current := cluster
	for {
		sector := s.layout.ConvertClusterToSector(current)
		for _, sec := range []uint16{sector, sector + 1} {
			block, ok := s.sectors[sec]
			if !ok {
				continue
			}
			var table *fat.Table
			if block.kind == blockEntries {
				table = block.table
			} else {
				table = fat.TableFromRaw(block.raw)
			}
			for i := 0; i < table.Len(); i++ {
				entries = append(entries, table.Get(i))
			}
		}

		next := s.table.Get(current)
		if next == fat.ClusterEndOfChain || next == fat.ClusterFree {
			break
		}
		current = next
	}
	return entries
}

// readFileChain follows cluster's FAT chain, concatenating each cluster's
// data sectors, and truncates the result to size bytes.
func (s *DiskStorage) readFileChain(cluster uint16, size uint32) []byte {
	spc := int(s.layout.SectorsPerCluster())

	var content []byte
	current := cluster
	for {
		base := s.layout.ConvertClusterToSector(current)
		for i := 0; i < spc; i++ {
			content = append(content, s.ReadSector(base+uint16(i))...)
		}

		next := s.table.Get(current)
		if next == fat.ClusterEndOfChain || next == fat.ClusterFree {
			break
		}
		current = next
	}

	if uint32(len(content)) > size {
		content = content[:size]
	}
	return content
}
