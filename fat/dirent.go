package fat

import (
	"encoding/binary"
	"time"

	"github.com/noxer/bytewriter"
)

// EntrySize is the fixed, wire-exact size of a single directory entry.
const EntrySize = 32

// Directory entry attribute flags. The Atari format only distinguishes
// files from directories.
const (
	AttrFile      uint8 = 0x00
	AttrDirectory uint8 = 0x10
)

// Dirent is a decoded 32-byte directory entry: 8.3 name, attribute byte,
// packed modification time, starting cluster, and size.
//
// Name and Ext are stored without padding or forced case; EncodeInto
// applies the on-wire space-padding and preserves whatever case the caller
// supplied (the Atari driver does not uppercase names, unlike canonical
// DOS).
type Dirent struct {
	Name    string
	Ext     string
	Attr    uint8
	Mtime   time.Time
	Cluster uint16
	Size    uint32
}

// EncodeInto writes the 32-byte wire representation of d into buf, which
// must be exactly EntrySize bytes. Using an explicit field-by-field encoder
// into a caller-owned buffer — rather than reinterpreting the struct's
// memory — is what keeps the round-trip property exact regardless of
// padding or field order on whatever platform this runs on.
func (d Dirent) EncodeInto(buf []byte) {
	if len(buf) != EntrySize {
		panic("fat: EncodeInto: buffer must be exactly EntrySize bytes")
	}

	w := bytewriter.New(buf)
	w.Write(padName(d.Name, 8))
	w.Write(padName(d.Ext, 3))
	w.Write([]byte{d.Attr})
	w.Write(make([]byte, 10)) // NT/ctime reserved

	mtime, mdate := packDateTime(d.Mtime)
	binary.Write(w, binary.LittleEndian, mtime)
	binary.Write(w, binary.LittleEndian, mdate)
	binary.Write(w, binary.LittleEndian, d.Cluster)
	binary.Write(w, binary.LittleEndian, d.Size)
}

// DecodeDirent parses a 32-byte on-wire record into a Dirent. buf must be
// exactly EntrySize bytes.
func DecodeDirent(buf []byte) Dirent {
	if len(buf) != EntrySize {
		panic("fat: DecodeDirent: buffer must be exactly EntrySize bytes")
	}

	name := unpadName(buf[0:8])
	ext := unpadName(buf[8:11])
	attr := buf[11]
	mtime := binary.LittleEndian.Uint16(buf[22:24])
	mdate := binary.LittleEndian.Uint16(buf[24:26])
	cluster := binary.LittleEndian.Uint16(buf[26:28])
	size := binary.LittleEndian.Uint32(buf[28:32])

	return Dirent{
		Name:    name,
		Ext:     ext,
		Attr:    attr,
		Mtime:   unpackDateTime(mtime, mdate),
		Cluster: cluster,
		Size:    size,
	}
}

// IsDir reports whether the entry's attribute byte marks it as a directory.
func (d Dirent) IsDir() bool { return d.Attr&AttrDirectory != 0 }

func padName(s string, width int) []byte {
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf, s)
	return buf
}

func unpadName(buf []byte) string {
	end := len(buf)
	for end > 0 && (buf[end-1] == ' ' || buf[end-1] == 0) {
		end--
	}
	return string(buf[:end])
}

// packDateTime packs a time.Time into the FAT mtime/mdate fields: mtime has
// seconds/2 in the low 5 bits, minutes in the next 6, hours in the top 5;
// mdate has day in the low 5 bits, month in the next 4, year-1980 in the
// top 7.
func packDateTime(t time.Time) (mtime uint16, mdate uint16) {
	mtime = uint16(t.Second()/2) | uint16(t.Minute())<<5 | uint16(t.Hour())<<11
	mdate = uint16(t.Day()) | uint16(t.Month())<<5 | uint16(t.Year()-1980)<<9
	return mtime, mdate
}

func unpackDateTime(mtime, mdate uint16) time.Time {
	second := int(mtime&0x1F) * 2
	minute := int((mtime >> 5) & 0x3F)
	hour := int(mtime >> 11)

	day := int(mdate & 0x1F)
	month := time.Month((mdate >> 5) & 0x0F)
	year := 1980 + int(mdate>>9)

	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}
