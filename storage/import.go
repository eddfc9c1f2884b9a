package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/arthurlm/atariserialdisk/fat"
	"github.com/arthurlm/atariserialdisk/internal/errs"
)

// ImportPath walks the host directory tree rooted at root and lays it out
// into storage: directories become cluster chains seeded with "." and ".."
// entries, files become cluster chains of their sector-chunked content.
//
// Per-entry failures are logged and skipped rather than aborting the
// import; ImportPath returns an aggregated error summarizing every entry
// that was skipped, or nil if every entry imported cleanly.
func (s *DiskStorage) ImportPath(root string) error {
	return s.importDir(root, ROOTIndex).ErrorOrNil()
}

func (s *DiskStorage) importDir(hostDir string, parent uint16) *multierror.Error {
	var result *multierror.Error

	children, err := os.ReadDir(hostDir)
	if err != nil {
		log.Printf("import: skipping directory %q: %s", hostDir, err)
		return multierror.Append(result, fmt.Errorf("read dir %q: %w", hostDir, err))
	}

	for _, child := range children {
		name := child.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		info, err := child.Info()
		if err != nil {
			log.Printf("import: skipping %q: %s", name, err)
			result = multierror.Append(result, fmt.Errorf("stat %q: %w", name, err))
			continue
		}

		hostPath := filepath.Join(hostDir, name)

		switch {
		case info.IsDir():
			cluster, err := s.createSubdirectory(name, info, parent)
			if err != nil {
				log.Printf("import: skipping directory %q: %s", hostPath, err)
				result = multierror.Append(result, fmt.Errorf("%q: %w", hostPath, err))
				continue
			}
			result = multierror.Append(result, s.importDir(hostPath, cluster))

		case info.Mode().IsRegular():
			if err := s.importFile(hostPath, name, info, parent); err != nil {
				log.Printf("import: skipping file %q: %s", hostPath, err)
				result = multierror.Append(result, fmt.Errorf("%q: %w", hostPath, err))
			}

		default:
			log.Printf("import: skipping %q: not a regular file or directory", hostPath)
		}
	}

	return result
}

// createSubdirectory reserves a cluster for a new subdirectory, inserts its
// entry into parent, and seeds the new cluster with "." and ".." entries.
// It returns the new directory's cluster so the caller can recurse into it.
func (s *DiskStorage) createSubdirectory(name string, info os.FileInfo, parent uint16) (uint16, error) {
	stem, ext, derr := fat.ToDOSName(name)
	if derr != nil {
		return 0, derr
	}

	cluster, ok := s.table.ReserveCluster()
	if !ok {
		return 0, errs.ErrDiskFull.WithMessage(fmt.Sprintf("allocating directory %q", name))
	}

	entry := fat.Dirent{
		Name:  stem,
		Ext:   ext,
		Attr:  fat.AttrDirectory,
		Mtime: info.ModTime(),
	}
	entry.Cluster = cluster
	if err := s.AddEntry(entry, parent); err != nil {
		return 0, err
	}

	dot := fat.Dirent{Name: ".", Attr: fat.AttrDirectory, Mtime: info.ModTime(), Cluster: cluster}
	dotdot := fat.Dirent{Name: "..", Attr: fat.AttrDirectory, Mtime: info.ModTime(), Cluster: parent}
	if err := s.AddEntry(dot, cluster); err != nil {
		return 0, err
	}
	if err := s.AddEntry(dotdot, cluster); err != nil {
		return 0, err
	}

	return cluster, nil
}

func (s *DiskStorage) importFile(hostPath, name string, info os.FileInfo, parent uint16) error {
	stem, ext, derr := fat.ToDOSName(name)
	if derr != nil {
		return derr
	}

	content, err := os.ReadFile(hostPath)
	if err != nil {
		return fmt.Errorf("read file %q: %w", hostPath, err)
	}

	cluster, err := s.writeFileChunks(content)
	if err != nil {
		return fmt.Errorf("import file %q: %w", hostPath, err)
	}

	entry := fat.Dirent{
		Name:    stem,
		Ext:     ext,
		Attr:    fat.AttrFile,
		Mtime:   info.ModTime(),
		Cluster: cluster,
		Size:    uint32(len(content)),
	}
	if err := s.AddEntry(entry, parent); err != nil {
		return err
	}
	return nil
}

// writeFileChunks lays out content across bytes_per_sector chunks,
// extending the cluster chain every sectors_per_cluster chunks, and
// returns the first cluster of the chain. An empty file still occupies one
// chunk so it has a valid starting cluster.
func (s *DiskStorage) writeFileChunks(content []byte) (uint16, error) {
	bps := int(s.layout.BytesPerSector())
	spc := int(s.layout.SectorsPerCluster())

	first, ok := s.table.ReserveCluster()
	if !ok {
		return 0, errs.ErrDiskFull.WithMessage("no free cluster for file data")
	}
	current := first

	chunkCount := (len(content) + bps - 1) / bps
	if chunkCount == 0 {
		chunkCount = 1
	}

	for i := 0; i < chunkCount; i++ {
		if i > 0 && i%spc == 0 {
			next, ok := s.table.ExtendCluster(current)
			if !ok {
				return 0, errs.ErrDiskFull.WithMessage("no free cluster to extend file chain")
			}
			current = next
		}

		chunk := make([]byte, bps)
		start := i * bps
		if start < len(content) {
			stop := start + bps
			if stop > len(content) {
				stop = len(content)
			}
			copy(chunk, content[start:stop])
		}

		sector := s.layout.ConvertClusterToSector(current) + uint16(i%spc)
		if err := s.WriteSector(sector, chunk); err != nil {
			return 0, err
		}
	}

	return first, nil
}
