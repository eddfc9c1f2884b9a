// Package port lists and opens the host's serial ports. It is excluded
// glue per spec — the core state machine only needs an opened byte-duplex
// handle — but a runnable binary needs somewhere to get one from.
package port

import (
	"fmt"

	"go.bug.st/serial"
)

// List returns the names of every serial port currently attached to the
// host, e.g. "/dev/ttyUSB0" or "COM3".
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("port: list serial ports: %w", err)
	}
	return ports, nil
}

// Open opens name at the protocol's fixed serial parameters: 19200 baud,
// 8 data bits, no parity, 1 stop bit, no flow control.
func Open(name string) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: 19200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("port: open %q: %w", name, err)
	}
	return p, nil
}
