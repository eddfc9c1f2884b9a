package fat

import (
	"io"

	"github.com/arthurlm/atariserialdisk/internal/errs"
)

// Table is a fixed-capacity array of 32-byte directory entry slots. It
// backs both the root directory (one Table per root directory sector) and
// a subdirectory's data (one Table per cluster's data sectors, promoted
// from raw sector bytes on first directory-entry push — see
// storage.pushInto).
//
// An "empty" slot is all zero bytes. Push always targets the first empty
// slot by position, never appends past it — a later deletion (this core
// never deletes, but the wire format must still tolerate holes left by raw
// sector writes) can reopen an earlier slot.
type Table struct {
	capacity int
	slots    [][EntrySize]byte
}

// NewTable constructs a Table of the given capacity with every slot empty.
func NewTable(capacity int) *Table {
	return &Table{capacity: capacity, slots: make([][EntrySize]byte, capacity)}
}

// TableFromRaw reinterprets an existing block of sector bytes as a Table.
// len(raw) must be a multiple of EntrySize; this is how a previously-opaque
// Data block is promoted to Entries once a push targets it.
func TableFromRaw(raw []byte) *Table {
	count := len(raw) / EntrySize
	t := &Table{capacity: count, slots: make([][EntrySize]byte, count)}
	for i := 0; i < count; i++ {
		copy(t.slots[i][:], raw[i*EntrySize:(i+1)*EntrySize])
	}
	return t
}

// TableFromReader reads a fixed-size Table of the given slot count from r.
func TableFromReader(r io.Reader, capacity int) (*Table, error) {
	raw := make([]byte, capacity*EntrySize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	return TableFromRaw(raw), nil
}

// Capacity returns the fixed number of slots this Table holds.
func (t *Table) Capacity() int { return t.capacity }

// Len returns the number of occupied (non-empty) slots.
func (t *Table) Len() int {
	n := 0
	for i := range t.slots {
		if !isEmptySlot(&t.slots[i]) {
			n++
		}
	}
	return n
}

// Get decodes the entry at the given slot index, empty or not.
func (t *Table) Get(index int) Dirent { return DecodeDirent(t.slots[index][:]) }

// Push writes entry into the first empty slot, preserving the order of
// already-occupied slots. It returns errs.ErrFolderFull if every slot is
// occupied.
func (t *Table) Push(entry Dirent) errs.DriverError {
	for i := range t.slots {
		if isEmptySlot(&t.slots[i]) {
			entry.EncodeInto(t.slots[i][:])
			return nil
		}
	}
	return errs.ErrFolderFull.WithMessage("directory table has no empty slots")
}

// AsRaw returns the table's slots concatenated as a single byte slice of
// length Capacity()*EntrySize.
func (t *Table) AsRaw() []byte {
	buf := make([]byte, t.capacity*EntrySize)
	for i, slot := range t.slots {
		copy(buf[i*EntrySize:], slot[:])
	}
	return buf
}

func isEmptySlot(slot *[EntrySize]byte) bool {
	for _, b := range slot {
		if b != 0 {
			return false
		}
	}
	return true
}
