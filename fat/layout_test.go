package fat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurlm/atariserialdisk/fat"
)

func TestBytesPerDisk(t *testing.T) {
	cases := []struct {
		tos       fat.TOSVersion
		partition fat.PartitionType
		want      uint32
	}{
		{fat.TOSV104, fat.PartitionGEM, 33_553_408},
		{fat.TOSV104, fat.PartitionBGM, 536_854_528},
		{fat.TOSV100, fat.PartitionGEM, 16_776_192},
		{fat.TOSV100, fat.PartitionBGM, 268_419_072},
	}

	for _, c := range cases {
		layout := fat.MustNewLayout(c.tos, c.partition, 8)
		assert.Equal(t, c.want, layout.BytesPerDisk(), "%s/%s", c.tos, c.partition)
	}
}

func TestConvertClusterToSectorV104BGM(t *testing.T) {
	layout := fat.MustNewLayout(fat.TOSV104, fat.PartitionBGM, 8)
	assert.Equal(t, uint16(0xA0+0x14), layout.ConvertClusterToSector(0x50))
}

func TestBIOSParameterBlockDefault(t *testing.T) {
	layout := fat.DefaultLayout()
	bpb := layout.BIOSParameterBlock()

	want := []byte{
		0x20, 0x00, // bytes per sector: 8192
		0x00, 0x02, // sectors per cluster: 2
		0x40, 0x00, // bytes per cluster: 16384
		0x00, 0x08, // root directory sectors: 8
		0x00, 0x08, // 1 FAT sectors
		0x00, 0x08, // 2 FAT sectors
		0x00, 0x18, // first free sector
		0x7F, 0xFF, // cluster count
		0x00, 0x01, // flags
	}
	assert.Equal(t, want, bpb[:])
}

func TestNewLayoutRejectsUnknownPreset(t *testing.T) {
	_, err := fat.NewLayout("V999", fat.PartitionGEM, 8)
	require.Error(t, err)
}
