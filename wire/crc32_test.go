package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arthurlm/atariserialdisk/wire"
)

func TestCRC32POSIXVectors(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), wire.CRC32POSIX([]byte{0, 0, 0, 0, 0}))
	assert.Equal(t, uint32(0x5A600FE0), wire.CRC32POSIX([]byte{1, 2, 3, 4, 5}))
}

func TestCRC32POSIXEmpty(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), wire.CRC32POSIX(nil))
}
