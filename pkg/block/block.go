package block

import (
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
)

// Size is the width of a Block in bytes.
const Size = 16

var ErrBlockLength = errors.New("provided bytes are not the length of a block")

// Block is a 128-bit opaque value, the unit of every OT payload,
// key and encoding.
type Block [Size]byte

// FromUint64s builds a Block from two 64 bit words, the high word
// first. Words are laid out little endian so that FromUint64s(0, 1)
// has its lowest bit set.
func FromUint64s(hi, lo uint64) (b Block) {
	binary.LittleEndian.PutUint64(b[:8], lo)
	binary.LittleEndian.PutUint64(b[8:], hi)
	return
}

// FromBytes copies a 16 byte slice into a Block.
func FromBytes(src []byte) (b Block, err error) {
	if len(src) != Size {
		return b, ErrBlockLength
	}
	copy(b[:], src)
	return b, nil
}

// Uint64s returns the high and low words of b.
func (b Block) Uint64s() (hi, lo uint64) {
	return binary.LittleEndian.Uint64(b[8:]), binary.LittleEndian.Uint64(b[:8])
}

// Equal compares two blocks in constant time.
func (b Block) Equal(o Block) bool {
	return subtle.ConstantTimeCompare(b[:], o[:]) == 1
}

// Xor returns b ^ o.
func (b Block) Xor(o Block) (dst Block) {
	for i := range dst {
		dst[i] = b[i] ^ o[i]
	}
	return
}

// IsZero reports whether every bit of b is cleared.
func (b Block) IsZero() bool {
	return b.Equal(Block{})
}

func (b Block) String() string {
	return hex.EncodeToString(b[:])
}

// Flatten lays out blocks contiguously.
func Flatten(blocks []Block) []byte {
	dst := make([]byte, len(blocks)*Size)
	for i := range blocks {
		copy(dst[i*Size:], blocks[i][:])
	}
	return dst
}
