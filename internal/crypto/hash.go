package crypto

import (
	"encoding/binary"

	"github.com/optable/kkrt/pkg/block"
	"github.com/zeebo/blake3"
)

const (
	commitContext = "optable kkrt 2022-03 seed commitment"
	splitContext  = "optable kkrt 2022-03 split"
)

// CommitmentLen is the byte length of a seed commitment.
const CommitmentLen = 32

// RowHasher is the random oracle H(i, row) that turns a correlation
// row into an encoding. It keeps a reusable blake3 state and is not
// safe for concurrent use.
type RowHasher struct {
	h   *blake3.Hasher
	ctr [8]byte
}

// NewRowHasher returns a RowHasher.
func NewRowHasher() *RowHasher {
	return &RowHasher{h: blake3.New()}
}

// Sum writes H(index, row) into dst. Any length of dst is allowed,
// blake3 is used as an extendable output function.
func (r *RowHasher) Sum(dst []byte, index uint64, row []byte) {
	binary.LittleEndian.PutUint64(r.ctr[:], index)

	r.h.Reset()
	r.h.Write(r.ctr[:])
	r.h.Write(row)
	r.h.Digest().Read(dst)
}

// Block returns the first 128 bits of H(index, row).
func (r *RowHasher) Block(index uint64, row []byte) (b block.Block) {
	r.Sum(b[:], index, row)
	return
}

// Commit returns a hiding and binding commitment to seed.
func Commit(seed block.Block) (c [CommitmentLen]byte) {
	h := blake3.NewDeriveKey(commitContext)
	h.Write(seed[:])
	h.Digest().Read(c[:])
	return
}

// DeriveSeed derives the seed of split child number counter from a
// base OT seed. Distinct counters give independent seeds.
func DeriveSeed(seed block.Block, counter uint64) (dst block.Block) {
	material := make([]byte, block.Size+8)
	copy(material, seed[:])
	binary.LittleEndian.PutUint64(material[block.Size:], counter)
	blake3.DeriveKey(splitContext, material, dst[:])
	return
}
