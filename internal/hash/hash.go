// Package hash provides keyed 64-bit fingerprints of encodings. They
// are not cryptographic; the key only keeps fingerprints of different
// auditors unrelated.
package hash

import (
	"encoding/binary"
	"fmt"

	"github.com/dchest/siphash"
	"github.com/minio/highwayhash"
	"github.com/shivakar/metrohash"
	"github.com/twmb/murmur3"
)

// KeyLength is the length of every fingerprint key.
const KeyLength = 32

const (
	Highway = iota
	Murmur3
	Metro
	SIP
)

var (
	ErrUnknownHash       = fmt.Errorf("cannot create a hasher of unknown hash type")
	ErrKeyLengthMismatch = fmt.Errorf("provided key is not %d length", KeyLength)
)

// Hasher computes keyed 64-bit fingerprints.
type Hasher interface {
	Hash64([]byte) uint64
}

// New creates a hasher of type t keyed with key.
func New(t int, key []byte) (Hasher, error) {
	if len(key) != KeyLength {
		return nil, ErrKeyLengthMismatch
	}

	switch t {
	case Highway:
		return newHighwayHasher(key)
	case Murmur3:
		return newMurmur3Hasher(key), nil
	case Metro:
		return newMetroHasher(key), nil
	case SIP:
		return newSIPHasher(key), nil
	default:
		return nil, ErrUnknownHash
	}
}

// highway keys HighwayHash-64 directly.
type highway struct {
	key []byte
}

func newHighwayHasher(key []byte) (highway, error) {
	// highwayhash rejects keys of the wrong size; fail early
	if _, err := highwayhash.New64(key); err != nil {
		return highway{}, err
	}
	return highway{key: append([]byte(nil), key...)}, nil
}

func (h highway) Hash64(p []byte) uint64 {
	return highwayhash.Sum64(p, h.key)
}

// murmur64 seeds Murmur3 with the first two words of the key.
type murmur64 struct {
	seed1, seed2 uint64
}

func newMurmur3Hasher(key []byte) murmur64 {
	return murmur64{
		seed1: binary.LittleEndian.Uint64(key),
		seed2: binary.LittleEndian.Uint64(key[8:]),
	}
}

func (m murmur64) Hash64(p []byte) uint64 {
	hi, _ := murmur3.SeedSum128(m.seed1, m.seed2, p)
	return hi
}

// metro prefixes the input with the key.
type metro struct {
	key []byte
}

func newMetroHasher(key []byte) metro {
	return metro{key: append([]byte(nil), key...)}
}

func (m metro) Hash64(p []byte) uint64 {
	h := metrohash.NewMetroHash64()
	h.Write(m.key)
	h.Write(p)
	return h.Sum64()
}

// siphash64 keys SipHash-2-4 with the first 16 bytes of the key.
type siphash64 struct {
	key0, key1 uint64
}

func newSIPHasher(key []byte) siphash64 {
	return siphash64{
		key0: binary.LittleEndian.Uint64(key),
		key1: binary.LittleEndian.Uint64(key[8:]),
	}
}

func (s siphash64) Hash64(p []byte) uint64 {
	return siphash.Hash(s.key0, s.key1, p)
}
