//go:build amd64 && !generic
// +build amd64,!generic

package util

import (
	"github.com/alecthomas/unsafeslice"
)

// Xor casts the first part of the byte slices (length divisible
// by 8) into uint64 and then performs XOR on the slices of uint64.
// The excess elements that could not be cast are XORed conventionally.
// The whole operation is performed in place. Panic if a and dst do
// not have the same length.
func Xor(dst, a []byte) {
	if len(dst) != len(a) {
		panic(ErrByteLengthMissMatch)
	}

	castDst := unsafeslice.Uint64SliceFromByteSlice(dst)
	castA := unsafeslice.Uint64SliceFromByteSlice(a)

	for i := range castDst {
		castDst[i] ^= castA[i]
	}

	for j := len(castDst) * 8; j < len(dst); j++ {
		dst[j] ^= a[j]
	}
}

// DoubleXor performs dst ^= a ^ b word by word, in place. Panic if
// a, b and dst do not have the same length.
func DoubleXor(dst, a, b []byte) {
	if len(dst) != len(a) || len(dst) != len(b) {
		panic(ErrByteLengthMissMatch)
	}

	castDst := unsafeslice.Uint64SliceFromByteSlice(dst)
	castA := unsafeslice.Uint64SliceFromByteSlice(a)
	castB := unsafeslice.Uint64SliceFromByteSlice(b)

	for i := range castDst {
		castDst[i] ^= castA[i] ^ castB[i]
	}

	for j := len(castDst) * 8; j < len(dst); j++ {
		dst[j] ^= a[j] ^ b[j]
	}
}

// AndXor performs dst = (dst & a) ^ b word by word, in place. Panic if
// a, b and dst do not have the same length.
func AndXor(dst, a, b []byte) {
	if len(dst) != len(a) || len(dst) != len(b) {
		panic(ErrByteLengthMissMatch)
	}

	castDst := unsafeslice.Uint64SliceFromByteSlice(dst)
	castA := unsafeslice.Uint64SliceFromByteSlice(a)
	castB := unsafeslice.Uint64SliceFromByteSlice(b)

	for i := range castDst {
		castDst[i] = (castDst[i] & castA[i]) ^ castB[i]
	}

	for j := len(castDst) * 8; j < len(dst); j++ {
		dst[j] = (dst[j] & a[j]) ^ b[j]
	}
}
