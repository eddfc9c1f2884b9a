// Package config defines the configuration struct the emulator core
// consumes: TOS version, partition type, and root directory size, each
// with a default matching spec.
package config

import (
	"fmt"

	"github.com/arthurlm/atariserialdisk/fat"
)

// TOSVersion is the raw, unvalidated configuration value for the TOS
// version flag.
type TOSVersion string

// PartitionType is the raw, unvalidated configuration value for the
// partition type flag.
type PartitionType string

// Config is the flat set of parameters the core needs to build a Layout.
// It carries no behavior of its own beyond defaulting and validation,
// mirroring the teacher's small typed-wrapper flag structs.
type Config struct {
	TOS                  TOSVersion
	PartitionType        PartitionType
	RootDirectorySectors uint16
	SerialPort           string
	ImportPath           string
	DumpPath             string
}

// Default returns the configuration's zero-value defaults: TOS V104,
// partition type BGM, 8 root directory sectors.
func Default() Config {
	return Config{
		TOS:                  "V104",
		PartitionType:        "BGM",
		RootDirectorySectors: 8,
	}
}

// Resolve validates and converts the raw string fields into the fat
// package's typed enums, applying defaults for empty fields.
func (c Config) Resolve() (fat.TOSVersion, fat.PartitionType, uint16, error) {
	tos := c.TOS
	if tos == "" {
		tos = "V104"
	}
	partitionType := c.PartitionType
	if partitionType == "" {
		partitionType = "BGM"
	}
	rootSectors := c.RootDirectorySectors
	if rootSectors == 0 {
		rootSectors = 8
	}

	switch tos {
	case "V100", "V104":
	default:
		return "", "", 0, fmt.Errorf("config: invalid TOS version %q, must be V100 or V104", tos)
	}

	switch partitionType {
	case "GEM", "BGM":
	default:
		return "", "", 0, fmt.Errorf("config: invalid partition type %q, must be GEM or BGM", partitionType)
	}

	return fat.TOSVersion(tos), fat.PartitionType(partitionType), rootSectors, nil
}
