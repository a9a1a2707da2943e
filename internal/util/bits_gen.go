//go:build !amd64 || generic
// +build !amd64 generic

package util

import (
	"encoding/binary"
)

// Xor performs dst ^= a, in place, processing 8 bytes at a time when
// possible. Panic if a and dst do not have the same length.
func Xor(dst, a []byte) {
	if len(dst) != len(a) {
		panic(ErrByteLengthMissMatch)
	}

	n := len(dst) / 8
	for i := 0; i < n; i++ {
		d := binary.LittleEndian.Uint64(dst[i*8:])
		binary.LittleEndian.PutUint64(dst[i*8:], d^binary.LittleEndian.Uint64(a[i*8:]))
	}

	for j := n * 8; j < len(dst); j++ {
		dst[j] ^= a[j]
	}
}

// DoubleXor performs dst ^= a ^ b, in place. Panic if a, b and dst do
// not have the same length.
func DoubleXor(dst, a, b []byte) {
	if len(dst) != len(a) || len(dst) != len(b) {
		panic(ErrByteLengthMissMatch)
	}

	n := len(dst) / 8
	for i := 0; i < n; i++ {
		d := binary.LittleEndian.Uint64(dst[i*8:])
		d ^= binary.LittleEndian.Uint64(a[i*8:]) ^ binary.LittleEndian.Uint64(b[i*8:])
		binary.LittleEndian.PutUint64(dst[i*8:], d)
	}

	for j := n * 8; j < len(dst); j++ {
		dst[j] ^= a[j] ^ b[j]
	}
}

// AndXor performs dst = (dst & a) ^ b, in place. Panic if a, b and dst
// do not have the same length.
func AndXor(dst, a, b []byte) {
	if len(dst) != len(a) || len(dst) != len(b) {
		panic(ErrByteLengthMissMatch)
	}

	n := len(dst) / 8
	for i := 0; i < n; i++ {
		d := binary.LittleEndian.Uint64(dst[i*8:])
		d = (d & binary.LittleEndian.Uint64(a[i*8:])) ^ binary.LittleEndian.Uint64(b[i*8:])
		binary.LittleEndian.PutUint64(dst[i*8:], d)
	}

	for j := n * 8; j < len(dst); j++ {
		dst[j] = (dst[j] & a[j]) ^ b[j]
	}
}
