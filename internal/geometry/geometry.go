// Package geometry holds the small, fixed table of TOS/partition-type disk
// geometry presets.
//
// Modeled on disks/disks.go's predefined-geometry lookup in the teacher
// repo: a CSV table loaded once via gocsv and queried by key, rather than a
// hard-coded switch buried in the layout calculator.
package geometry

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

//go:embed geometry.csv
var presetsRawCSV string

// Preset is one row of the geometry table: the two values the Atari driver's
// BIOS Parameter Block cares about for a given TOS version and partition type.
type Preset struct {
	TOS            string `csv:"tos"`
	PartitionType  string `csv:"partition_type"`
	ClusterCount   uint   `csv:"cluster_count"`
	BytesPerSector uint   `csv:"bytes_per_sector"`
}

var presets map[string]Preset

func key(tos, partitionType string) string {
	return strings.ToUpper(tos) + "/" + strings.ToUpper(partitionType)
}

func init() {
	presets = make(map[string]Preset)
	err := gocsv.UnmarshalToCallback(strings.NewReader(presetsRawCSV), func(row Preset) error {
		k := key(row.TOS, row.PartitionType)
		if _, exists := presets[k]; exists {
			return fmt.Errorf("duplicate geometry preset for %q", k)
		}
		presets[k] = row
		return nil
	})
	if err != nil {
		panic(fmt.Sprintf("geometry: malformed embedded preset table: %s", err))
	}
}

// Lookup returns the geometry preset for the given TOS version and partition
// type, e.g. Lookup("V104", "BGM").
func Lookup(tos, partitionType string) (Preset, error) {
	preset, ok := presets[key(tos, partitionType)]
	if !ok {
		return Preset{}, fmt.Errorf("no geometry preset for TOS %q / partition type %q", tos, partitionType)
	}
	return preset, nil
}
