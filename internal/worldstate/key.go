package worldstate

import "encoding/binary"

// KeyFromBytes derives a tree key from an arbitrary-width, big-endian byte
// string by truncating to its low 8 bytes, the same "low bytes of a wider
// field element" convention spec.md uses for the root tree's 16-byte
// truncation, generalized to this store's 64-bit key space. Inputs shorter
// than 8 bytes are zero-padded on the left.
func KeyFromBytes(b []byte) uint64 {
	if len(b) >= 8 {
		return binary.BigEndian.Uint64(b[len(b)-8:])
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:])
}

// NonEmptyLeaf is the sentinel value StateSerializer and RollupBuilder write
// to mark a sparse-tree key as set without carrying real leaf data: 64 zero
// bytes with the final byte set to 1.
var NonEmptyLeaf = [64]byte{63: 1}
