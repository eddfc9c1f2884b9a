package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/arthurlm/atariserialdisk/fat"
	"github.com/arthurlm/atariserialdisk/internal/config"
	"github.com/arthurlm/atariserialdisk/internal/port"
	"github.com/arthurlm/atariserialdisk/serial"
	"github.com/arthurlm/atariserialdisk/storage"
)

func main() {
	app := cli.App{
		Name:  "atariserialdisk",
		Usage: "Emulate a FAT disk for an Atari ST over a serial line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "serial port to listen on, e.g. /dev/ttyUSB0"},
			&cli.StringFlag{Name: "tos", Value: "V104", Usage: "Atari TOS version: V100 or V104"},
			&cli.StringFlag{Name: "partition-type", Value: "BGM", Usage: "partition type: GEM or BGM"},
			&cli.UintFlag{Name: "root-sectors", Value: 8, Usage: "root directory size, in sectors"},
			&cli.StringFlag{Name: "import", Usage: "host directory to import before serving"},
			&cli.StringFlag{Name: "dump", Usage: "path to write the disk image dump on shutdown"},
			&cli.BoolFlag{Name: "list-ports", Usage: "list available serial ports and exit"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err)
	}
}

func run(c *cli.Context) error {
	if c.Bool("list-ports") {
		ports, err := port.List()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	cfg := config.Config{
		TOS:                  config.TOSVersion(c.String("tos")),
		PartitionType:        config.PartitionType(c.String("partition-type")),
		RootDirectorySectors: uint16(c.Uint("root-sectors")),
		SerialPort:           c.String("port"),
		ImportPath:           c.String("import"),
		DumpPath:             c.String("dump"),
	}
	if cfg.SerialPort == "" {
		return fmt.Errorf("missing required --port flag")
	}

	tos, partitionType, rootSectors, err := cfg.Resolve()
	if err != nil {
		return err
	}

	layout, err := fat.NewLayout(tos, partitionType, rootSectors)
	if err != nil {
		return fmt.Errorf("build layout: %w", err)
	}

	disk := storage.New(layout)
	if cfg.ImportPath != "" {
		if err := disk.ImportPath(cfg.ImportPath); err != nil {
			log.Printf("import: completed with errors: %s", err)
		}
	}

	conn, err := port.Open(cfg.SerialPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	machine := serial.New(conn, disk, log.Default())

	log.Println("Atari serial disk: READY.")
	runErr := machine.Run(ctx)

	if cfg.DumpPath != "" {
		if err := dumpImage(disk, cfg.DumpPath); err != nil {
			log.Printf("dump: %s", err)
		}
	}

	if runErr != nil && runErr != context.Canceled {
		return fmt.Errorf("serial loop terminated: %w", runErr)
	}
	return nil
}

func dumpImage(disk *storage.DiskStorage, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dump file %q: %w", path, err)
	}
	defer f.Close()

	if _, err := disk.Dump(f); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}
