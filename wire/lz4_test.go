package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurlm/atariserialdisk/wire"
)

func TestCompressDecompressLZ4RoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("atari serial disk"), 200)

	compressed, ok := wire.CompressLZ4(original)
	require.True(t, ok, "highly repetitive input should compress smaller")
	assert.Less(t, len(compressed), len(original))

	decompressed, err := wire.DecompressLZ4(compressed, len(original))
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}

func TestCompressLZ4RejectsIncompressibleData(t *testing.T) {
	random := []byte{0x4f, 0x11, 0x92, 0xab, 0x00, 0xff, 0x3c, 0xd2}
	_, ok := wire.CompressLZ4(random)
	assert.False(t, ok)
}
