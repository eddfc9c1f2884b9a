package storage

import (
	"github.com/arthurlm/atariserialdisk/fat"
	"github.com/arthurlm/atariserialdisk/internal/errs"
)

// AddEntry places entry into the directory identified by cluster. cluster
// of ROOTIndex targets the fixed root directory; any other value targets
// the two data sectors making up that cluster, extending the chain and
// recursing if both are full.
func (s *DiskStorage) AddEntry(entry fat.Dirent, cluster uint16) errs.DriverError {
	if cluster == ROOTIndex {
		for i := range s.root {
			if err := s.root[i].Push(entry); err == nil {
				return nil
			}
		}
		return errs.ErrFolderFull.WithMessage("no root directory sector has a free slot")
	}

	sector := s.layout.ConvertClusterToSector(cluster)
	if s.pushInto(sector, entry) == nil {
		return nil
	}
	if s.pushInto(sector+1, entry) == nil {
		return nil
	}

	next, ok := s.table.ExtendCluster(cluster)
	if !ok {
		return errs.ErrDiskFull.WithMessage("no free cluster to extend directory chain")
	}
	return s.AddEntry(entry, next)
}

// pushInto appends entry to the directory table occupying the given data
// sector, promoting an opaque Data block to Entries in place if necessary.
func (s *DiskStorage) pushInto(sector uint16, entry fat.Dirent) errs.DriverError {
	capacity := int(s.layout.BytesPerSector()) / fat.EntrySize

	block, ok := s.sectors[sector]
	if !ok {
		table := fat.NewTable(capacity)
		if err := table.Push(entry); err != nil {
			return err
		}
		s.sectors[sector] = &dataBlock{kind: blockEntries, table: table}
		return nil
	}

	if block.kind == blockData {
		table := fat.TableFromRaw(block.raw)
		if err := table.Push(entry); err != nil {
			return err
		}
		block.kind = blockEntries
		block.table = table
		block.raw = nil
		return nil
	}

	return block.table.Push(entry)
}
