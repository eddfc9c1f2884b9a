package wire

import "github.com/pierrec/lz4/v4"

// CompressLZ4 compresses src using LZ4's block format (no frame header),
// matching the protocol's read-response framing, which only ever carries
// the compressed bytes themselves plus an external length prefix.
//
// It returns the compressed bytes and ok=false if compression did not
// shrink the input — the caller (serial.Machine) falls back to sending the
// uncompressed payload in that case, per the read-response framing rule.
func CompressLZ4(src []byte) (compressed []byte, ok bool) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var compressor lz4.Compressor
	n, err := compressor.CompressBlock(src, dst)
	if err != nil || n == 0 || n >= len(src) {
		return nil, false
	}
	return dst[:n], true
}

// DecompressLZ4 decompresses an LZ4 block of known uncompressed size.
func DecompressLZ4(src []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
