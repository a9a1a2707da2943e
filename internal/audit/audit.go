// Package audit watches the encodings produced by OT extenders and
// flags any value seen twice. Encodings of distinct instances are
// independent 128-bit values, so a repeat points at reused correlation
// randomness, such as a split child sharing seeds with its parent.
package audit

import (
	"crypto/rand"
	"errors"

	bloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/optable/kkrt/internal/hash"
	"github.com/optable/kkrt/pkg/block"
)

// FalsePositive is the false positive rate of the prefilter.
const FalsePositive = 1e-6

var ErrRepeatedEncoding = errors.New("encoding observed twice")

// Auditor records fingerprints of observed encodings. A bloom filter
// answers the common "never seen" case; its hits are confirmed against
// the exact fingerprint set. An Auditor is not safe for concurrent
// use.
type Auditor struct {
	filter *bloom.BloomFilter
	hasher hash.Hasher
	seen   map[uint64]block.Block
	hits   int
}

// New returns an Auditor sized for about n encodings, fingerprinting
// them with the hash type t under a fresh random key.
func New(n uint, t int) (*Auditor, error) {
	key := make([]byte, hash.KeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	h, err := hash.New(t, key)
	if err != nil {
		return nil, err
	}

	if n == 0 {
		n = 1
	}
	return &Auditor{
		filter: bloom.NewWithEstimates(n, FalsePositive),
		hasher: h,
		seen:   make(map[uint64]block.Block, n),
	}, nil
}

// Observe records b. It returns ErrRepeatedEncoding when b was already
// observed.
func (a *Auditor) Observe(b block.Block) error {
	if !a.filter.TestAndAdd(b[:]) {
		a.seen[a.hasher.Hash64(b[:])] = b
		return nil
	}

	a.hits++
	fp := a.hasher.Hash64(b[:])
	if prev, ok := a.seen[fp]; ok && prev.Equal(b) {
		return ErrRepeatedEncoding
	}
	a.seen[fp] = b
	return nil
}

// Len returns the number of distinct encodings observed.
func (a *Auditor) Len() int {
	return len(a.seen)
}

// FilterHits returns how many observations went past the prefilter.
func (a *Auditor) FilterHits() int {
	return a.hits
}
