package serial_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arthurlm/atariserialdisk/fat"
	"github.com/arthurlm/atariserialdisk/serial"
	"github.com/arthurlm/atariserialdisk/storage"
	"github.com/arthurlm/atariserialdisk/wire"
)

var testMagic = []byte{0x18, 0x03, 0x20, 0x06}

// newHarness starts a Machine over one end of an in-memory pipe and returns
// the other end for the test to drive as the Atari peer, plus a cancel func
// that stops the machine and unblocks its goroutine.
func newHarness(t *testing.T, disk *storage.DiskStorage) (peer net.Conn, stop func()) {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	m := serial.New(serverConn, disk, nil)

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	return clientConn, func() {
		cancel()
		serverConn.Close()
		clientConn.Close()
		<-done
	}
}

func readResponsePayload(t *testing.T, peer net.Conn, expectedLen int) []byte {
	t.Helper()

	tag := make([]byte, 1)
	_, err := io.ReadFull(peer, tag)
	require.NoError(t, err)

	switch tag[0] {
	case 0x00:
		payload := make([]byte, expectedLen)
		_, err := io.ReadFull(peer, payload)
		require.NoError(t, err)
		crcBuf := make([]byte, 4)
		_, err = io.ReadFull(peer, crcBuf)
		require.NoError(t, err)
		require.Equal(t, wire.CRC32POSIX(payload), binary.BigEndian.Uint32(crcBuf))
		return payload
	case 0x01:
		lenBuf := make([]byte, 4)
		_, err := io.ReadFull(peer, lenBuf)
		require.NoError(t, err)
		compressed := make([]byte, binary.BigEndian.Uint32(lenBuf))
		_, err = io.ReadFull(peer, compressed)
		require.NoError(t, err)
		crcBuf := make([]byte, 4)
		_, err = io.ReadFull(peer, crcBuf)
		require.NoError(t, err)

		payload, err := wire.DecompressLZ4(compressed, expectedLen)
		require.NoError(t, err)
		require.Equal(t, wire.CRC32POSIX(payload), binary.BigEndian.Uint32(crcBuf))
		return payload
	default:
		t.Fatalf("unexpected response tag %#02x", tag[0])
		return nil
	}
}

func TestQueryBPB(t *testing.T) {
	layout := fat.DefaultLayout()
	disk := storage.New(layout)
	peer, stop := newHarness(t, disk)
	defer stop()

	_, err := peer.Write(append(append([]byte{}, testMagic...), 0x02))
	require.NoError(t, err)

	resp := make([]byte, 18)
	_, err = io.ReadFull(peer, resp)
	require.NoError(t, err)

	want := layout.BIOSParameterBlock()
	require.Equal(t, want[:], resp)
}

func TestReadSectorEmptyDiskFAT(t *testing.T) {
	layout := fat.DefaultLayout()
	disk := storage.New(layout)
	peer, stop := newHarness(t, disk)
	defer stop()

	var req bytes.Buffer
	req.Write(testMagic)
	req.WriteByte(0x00)
	var idx, cnt [2]byte
	binary.BigEndian.PutUint16(idx[:], 0)
	binary.BigEndian.PutUint16(cnt[:], 1)
	req.Write(idx[:])
	req.Write(cnt[:])
	_, err := peer.Write(req.Bytes())
	require.NoError(t, err)

	bps := int(layout.BytesPerSector())
	payload := readResponsePayload(t, peer, bps)
	require.Equal(t, disk.ReadSector(0), payload)
}

func TestWriteSectorBadCRCThenGoodCRC(t *testing.T) {
	layout := fat.DefaultLayout()
	disk := storage.New(layout)
	peer, stop := newHarness(t, disk)
	defer stop()

	index := layout.FirstFreeSector()
	bps := int(layout.BytesPerSector())
	payload := bytes.Repeat([]byte{0x42}, bps)

	var req bytes.Buffer
	req.Write(testMagic)
	req.WriteByte(0x01)
	var idx, cnt [2]byte
	binary.BigEndian.PutUint16(idx[:], index)
	binary.BigEndian.PutUint16(cnt[:], 1)
	req.Write(idx[:])
	req.Write(cnt[:])
	_, err := peer.Write(req.Bytes())
	require.NoError(t, err)

	// First attempt: correct payload, wrong CRC.
	_, err = peer.Write([]byte{0x00})
	require.NoError(t, err)
	_, err = peer.Write(payload)
	require.NoError(t, err)
	var badCRC [4]byte
	binary.BigEndian.PutUint32(badCRC[:], wire.CRC32POSIX(payload)^0xFFFFFFFF)
	_, err = peer.Write(badCRC[:])
	require.NoError(t, err)

	nack := make([]byte, 1)
	_, err = io.ReadFull(peer, nack)
	require.NoError(t, err)
	require.Equal(t, byte(0x00), nack[0])

	// Retry: correct payload, correct CRC.
	_, err = peer.Write([]byte{0x00})
	require.NoError(t, err)
	_, err = peer.Write(payload)
	require.NoError(t, err)
	var goodCRC [4]byte
	binary.BigEndian.PutUint32(goodCRC[:], wire.CRC32POSIX(payload))
	_, err = peer.Write(goodCRC[:])
	require.NoError(t, err)

	ack := make([]byte, 1)
	_, err = io.ReadFull(peer, ack)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), ack[0])

	require.Equal(t, payload, disk.ReadSector(index))
}

func TestDesyncRecoveryOnBadMagic(t *testing.T) {
	layout := fat.DefaultLayout()
	disk := storage.New(layout)
	peer, stop := newHarness(t, disk)
	defer stop()

	_, err := peer.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x02})
	require.NoError(t, err)

	time.Sleep(600 * time.Millisecond)

	_, err = peer.Write(append(append([]byte{}, testMagic...), 0x02))
	require.NoError(t, err)

	resp := make([]byte, 18)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = io.ReadFull(peer, resp)
	require.NoError(t, err)

	want := layout.BIOSParameterBlock()
	require.Equal(t, want[:], resp)
}

func TestWriteRLERejectedAsNotImplemented(t *testing.T) {
	layout := fat.DefaultLayout()
	disk := storage.New(layout)
	peer, stop := newHarness(t, disk)
	defer stop()

	index := layout.FirstFreeSector()

	var req bytes.Buffer
	req.Write(testMagic)
	req.WriteByte(0x01)
	var idx, cnt [2]byte
	binary.BigEndian.PutUint16(idx[:], index)
	binary.BigEndian.PutUint16(cnt[:], 1)
	req.Write(idx[:])
	req.Write(cnt[:])
	_, err := peer.Write(req.Bytes())
	require.NoError(t, err)

	_, err = peer.Write([]byte{0x1F})
	require.NoError(t, err)

	// The machine returns an error and stops; no ack/nack byte is ever sent.
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	buf := make([]byte, 1)
	_, err = peer.Read(buf)
	require.Error(t, err)
}
