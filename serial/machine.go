// Package serial implements the Atari ST wire protocol state machine: a
// single-threaded, blocking request/response loop over a byte-duplex
// handle, driving a storage.DiskStorage.
package serial

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/arthurlm/atariserialdisk/internal/errs"
	"github.com/arthurlm/atariserialdisk/storage"
	"github.com/arthurlm/atariserialdisk/wire"
)

var magic = [4]byte{0x18, 0x03, 0x20, 0x06}

const (
	opReadSector  = 0x00
	opWriteSector = 0x01
	opQueryBPB    = 0x02
)

const (
	payloadUncompressed = 0x00
	payloadLZ4          = 0x01
	payloadRLE          = 0x1F
)

const desyncRecoveryDelay = 500 * time.Millisecond

// Port is the byte-duplex handle the Atari side is connected through —
// satisfied in production by an opened go.bug.st/serial port, and in tests
// by an in-memory pipe.
type Port interface {
	io.Reader
	io.Writer
}

// resettable is satisfied by handles that can discard buffered bytes for
// desync recovery (go.bug.st/serial's Port has exactly these two methods).
// Handles that don't implement it, such as test doubles, are simply not
// reset — the next 5 bytes on the handle are read as a fresh command header,
// with no scan for the magic sequence.
type resettable interface {
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Machine is the single-threaded serial protocol state machine. It holds no
// state beyond the currently pending write command; all durable state
// lives in the storage handle, which it mutates exclusively.
type Machine struct {
	conn    Port
	storage *storage.DiskStorage
	logger  *log.Logger

	pendingIndex uint16
	pendingCount uint16
}

// New constructs a Machine over conn and disk, logging to logger (or
// log.Default() if nil).
func New(conn Port, disk *storage.DiskStorage, logger *log.Logger) *Machine {
	if logger == nil {
		logger = log.Default()
	}
	return &Machine{conn: conn, storage: disk, logger: logger}
}

// Run executes the infinite request/response loop until ctx is canceled or
// a serial I/O error terminates it. Per the protocol's blocking model, all
// blocking happens at the serial boundary; cancellation is observed only
// between commands, never mid-read.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.waiting(); err != nil {
			return err
		}
	}
}

// waiting implements the Waiting state: read the 5-byte command header,
// dispatch on magic/opcode.
func (m *Machine) waiting() error {
	header := make([]byte, 5)
	if _, err := io.ReadFull(m.conn, header); err != nil {
		return fmt.Errorf("serial: read command header: %w", err)
	}

	if !bytes.Equal(header[:4], magic[:]) {
		m.logger.Printf("serial: bad magic %x, desync recovery", header[:4])
		return m.desyncRecovery()
	}

	switch header[4] {
	case opReadSector:
		return m.receiveReadSector()
	case opWriteSector:
		return m.receiveWriteSector()
	case opQueryBPB:
		bpb := m.storage.Layout().BIOSParameterBlock()
		if _, err := m.conn.Write(bpb[:]); err != nil {
			return fmt.Errorf("serial: write BPB: %w", err)
		}
		return nil
	default:
		m.logger.Printf("serial: unknown opcode %#02x, desync recovery", header[4])
		return m.desyncRecovery()
	}
}

// desyncRecovery sleeps briefly, flushes the connection's buffers if it
// supports that, and returns to Waiting. It never returns an error: loss of
// framing is an expected, non-fatal event.
func (m *Machine) desyncRecovery() error {
	time.Sleep(desyncRecoveryDelay)
	if r, ok := m.conn.(resettable); ok {
		r.ResetInputBuffer()
		r.ResetOutputBuffer()
	}
	return nil
}

// receiveReadSector implements ReceiveReadSector: read sector_index and
// sector_count, compose the response, and send it (optionally LZ4
// compressed) with a trailing CRC32 over the uncompressed payload.
func (m *Machine) receiveReadSector() error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(m.conn, header); err != nil {
		return fmt.Errorf("serial: read sector read header: %w", err)
	}

	index := binary.BigEndian.Uint16(header[0:2])
	count := binary.BigEndian.Uint16(header[2:4])

	payload := m.storage.ReadSectors(index, count)
	checksum := wire.CRC32POSIX(payload)

	if compressed, ok := wire.CompressLZ4(payload); ok {
		var frame bytes.Buffer
		frame.WriteByte(payloadLZ4)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
		frame.Write(lenBuf[:])
		frame.Write(compressed)
		var crcBuf [4]byte
		binary.BigEndian.PutUint32(crcBuf[:], checksum)
		frame.Write(crcBuf[:])
		_, err := m.conn.Write(frame.Bytes())
		if err != nil {
			return fmt.Errorf("serial: write compressed read response: %w", err)
		}
		return nil
	}

	var frame bytes.Buffer
	frame.WriteByte(payloadUncompressed)
	frame.Write(payload)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], checksum)
	frame.Write(crcBuf[:])
	if _, err := m.conn.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("serial: write read response: %w", err)
	}
	return nil
}

// receiveWriteSector implements ReceiveWriteSector: stash sector_index and
// sector_count, then fall through to ReceiveData.
func (m *Machine) receiveWriteSector() error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(m.conn, header); err != nil {
		return fmt.Errorf("serial: read sector write header: %w", err)
	}

	m.pendingIndex = binary.BigEndian.Uint16(header[0:2])
	m.pendingCount = binary.BigEndian.Uint16(header[2:4])

	return m.receiveData()
}

// receiveData implements ReceiveData: read the payload tag, then either
// validate and commit an uncompressed payload, fail fast on the
// unimplemented RLE tag, or desync-recover on anything else. On CRC
// mismatch it stays in ReceiveData by looping, matching the peer's retry
// behavior, instead of returning to Waiting.
func (m *Machine) receiveData() error {
	for {
		tag := make([]byte, 1)
		if _, err := io.ReadFull(m.conn, tag); err != nil {
			return fmt.Errorf("serial: read write payload tag: %w", err)
		}

		switch tag[0] {
		case payloadUncompressed:
			bps := int(m.storage.Layout().BytesPerSector())
			n := int(m.pendingCount) * bps

			payload := make([]byte, n)
			if _, err := io.ReadFull(m.conn, payload); err != nil {
				return fmt.Errorf("serial: read write payload: %w", err)
			}

			crcBuf := make([]byte, 4)
			if _, err := io.ReadFull(m.conn, crcBuf); err != nil {
				return fmt.Errorf("serial: read write CRC: %w", err)
			}
			wantCRC := binary.BigEndian.Uint32(crcBuf)
			gotCRC := wire.CRC32POSIX(payload)

			if gotCRC != wantCRC {
				if _, err := m.conn.Write([]byte{0x00}); err != nil {
					return fmt.Errorf("serial: write CRC nack: %w", err)
				}
				continue
			}

			if err := m.storage.WriteSectors(m.pendingIndex, m.pendingCount, payload); err != nil {
				return fmt.Errorf("serial: apply sector write: %w", err)
			}
			if _, err := m.conn.Write([]byte{0x01}); err != nil {
				return fmt.Errorf("serial: write CRC ack: %w", err)
			}
			return nil

		case payloadRLE:
			return errs.ErrNotImplemented.WithMessage("RLE-compressed sector writes (opcode 0x1F)")

		default:
			m.logger.Printf("serial: unknown write payload tag %#02x, desync recovery", tag[0])
			return m.desyncRecovery()
		}
	}
}
