// Command extractimage reconstructs a host directory tree from a disk image
// dump written by atariserialdisk's --dump flag. It is the offline
// counterpart to --import: inspect what the Atari wrote during a session
// without a live serial link.
package main

import (
	"fmt"
	"os"

	"github.com/arthurlm/atariserialdisk/storage"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s dump-file output-dir\n", os.Args[0])
		os.Exit(1)
	}

	sourcePath := os.Args[1]
	outputDir := os.Args[2]

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open dump file %q: %s\n", sourcePath, err)
		os.Exit(1)
	}
	defer sourceFile.Close()

	disk, err := storage.Load(sourceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load dump: %s\n", err)
		os.Exit(2)
	}

	if err := disk.ExtractModifiedFiles(outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to extract files: %s\n", err)
		os.Exit(2)
	}

	fmt.Printf("Extracted disk contents to %s\n", outputDir)
}
