package bitvec

import (
	"errors"
	"io"

	"github.com/bits-and-blooms/bitset"
)

var ErrIndexOutOfRange = errors.New("bit index outside of the vector")

// BitVector is an ordered sequence of choice bits backed by a
// bitset.BitSet. The vector has a fixed length set at creation.
type BitVector struct {
	set *bitset.BitSet
	n   int
}

// New returns a cleared BitVector of n bits.
func New(n int) *BitVector {
	return &BitVector{set: bitset.New(uint(n)), n: n}
}

// FromBits builds a BitVector from a slice holding one bit per byte.
// Any non zero byte is a set bit.
func FromBits(bits []uint8) *BitVector {
	v := New(len(bits))
	for i, b := range bits {
		if b != 0 {
			v.set.Set(uint(i))
		}
	}
	return v
}

// FromBytes unpacks n bits from src, least significant bit first.
func FromBytes(src []byte, n int) (*BitVector, error) {
	if len(src)*8 < n {
		return nil, ErrIndexOutOfRange
	}

	v := New(n)
	for i := 0; i < n; i++ {
		if (src[i/8]>>(i%8))&1 == 1 {
			v.set.Set(uint(i))
		}
	}
	return v, nil
}

// Randomize overwrites every bit of v with bits read from r. Bits are
// consumed least significant first, so two vectors randomized from
// identically seeded generators are identical.
func (v *BitVector) Randomize(r io.Reader) error {
	buf := make([]byte, (v.n+7)/8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}

	for i := 0; i < v.n; i++ {
		v.set.SetTo(uint(i), (buf[i/8]>>(i%8))&1 == 1)
	}
	return nil
}

// Len returns the number of bits in v.
func (v *BitVector) Len() int {
	return v.n
}

// Bit returns bit i as 0 or 1. It panics when i is out of range.
func (v *BitVector) Bit(i int) uint8 {
	if i < 0 || i >= v.n {
		panic(ErrIndexOutOfRange)
	}
	if v.set.Test(uint(i)) {
		return 1
	}
	return 0
}

// Set assigns bit i.
func (v *BitVector) Set(i int, value bool) error {
	if i < 0 || i >= v.n {
		return ErrIndexOutOfRange
	}
	v.set.SetTo(uint(i), value)
	return nil
}

// Count returns the number of set bits.
func (v *BitVector) Count() int {
	return int(v.set.Count())
}

// Bytes packs v into ceil(Len/8) bytes, least significant bit first.
func (v *BitVector) Bytes() []byte {
	dst := make([]byte, (v.n+7)/8)
	for i, ok := v.set.NextSet(0); ok && int(i) < v.n; i, ok = v.set.NextSet(i + 1) {
		dst[i/8] |= 1 << (i % 8)
	}
	return dst
}

// Clone returns a deep copy of v.
func (v *BitVector) Clone() *BitVector {
	return &BitVector{set: v.set.Clone(), n: v.n}
}

// Equal reports whether v and o hold the same bits.
func (v *BitVector) Equal(o *BitVector) bool {
	return v.n == o.n && v.set.Equal(o.set)
}
