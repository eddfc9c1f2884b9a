package fat_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthurlm/atariserialdisk/fat"
	"github.com/arthurlm/atariserialdisk/internal/errs"
)

func TestDirentTablePushAndFull(t *testing.T) {
	table := fat.NewTable(2)

	require.NoError(t, table.Push(fat.Dirent{Name: "A"}))
	require.NoError(t, table.Push(fat.Dirent{Name: "B"}))

	err := table.Push(fat.Dirent{Name: "C"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrFolderFull)
}

func TestDirentTableRoundTrip(t *testing.T) {
	original := fat.NewTable(4)
	require.NoError(t, original.Push(fat.Dirent{Name: "A", Ext: "TXT"}))
	require.NoError(t, original.Push(fat.Dirent{Name: "B", Ext: "TXT"}))

	raw := original.AsRaw()
	require.Len(t, raw, 4*fat.EntrySize)

	restored, err := fat.TableFromReader(bytes.NewReader(raw), 4)
	require.NoError(t, err)
	require.Equal(t, 2, restored.Len())
	assert.Equal(t, "A", restored.Get(0).Name)
	assert.Equal(t, "B", restored.Get(1).Name)
}

func TestTableFromRawPromotion(t *testing.T) {
	raw := make([]byte, 64)
	table := fat.TableFromRaw(raw)
	assert.Equal(t, 2, table.Capacity())
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, "", table.Get(0).Name)
}

func TestTableFromRawPushFillsFirstEmptySlot(t *testing.T) {
	raw := make([]byte, 2*fat.EntrySize)
	occupied := fat.Dirent{Name: "A"}
	occupied.EncodeInto(raw[0:fat.EntrySize])

	table := fat.TableFromRaw(raw)
	require.Equal(t, 1, table.Len())

	require.NoError(t, table.Push(fat.Dirent{Name: "B"}))
	assert.Equal(t, "A", table.Get(0).Name)
	assert.Equal(t, "B", table.Get(1).Name)

	err := table.Push(fat.Dirent{Name: "C"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrFolderFull)
}
