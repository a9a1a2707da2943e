package crypto

import (
	"encoding/binary"
	"fmt"

	"github.com/optable/kkrt/pkg/block"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// PRGMode selects the extendable output function used to expand base
// OT seeds.
type PRGMode int

const (
	Blake3 PRGMode = iota
	Blake2b
)

var ErrUnknownPRG = fmt.Errorf("cannot create a pseudorandom generator of unknown mode")

func (m PRGMode) String() string {
	switch m {
	case Blake3:
		return "blake3"
	case Blake2b:
		return "blake2b"
	default:
		return fmt.Sprintf("PRGMode(%d)", int(m))
	}
}

// PRG expands a short seed into an arbitrary number of pseudorandom
// bytes. A PRG keeps a reusable hash state and is not safe for
// concurrent use.
type PRG struct {
	mode PRGMode
	h    *blake3.Hasher
}

// NewPRG returns a PRG of the given mode.
func NewPRG(mode PRGMode) (*PRG, error) {
	switch mode {
	case Blake3:
		return &PRG{mode: mode, h: blake3.New()}, nil
	case Blake2b:
		return &PRG{mode: mode}, nil
	default:
		return nil, ErrUnknownPRG
	}
}

// Mode returns the mode p was created with.
func (p *PRG) Mode() PRGMode {
	return p.mode
}

// Generate fills dst with the expansion of seed.
func (p *PRG) Generate(dst, seed []byte) error {
	if p.mode == Blake2b {
		return pseudorandomGenerateBlake2b(dst, seed)
	}
	return PseudorandomGenerate(dst, seed, p.h)
}

// ColumnSeed binds a base OT seed to an Init epoch so that every Init
// expands fresh columns from the same base material.
func ColumnSeed(seed block.Block, epoch uint64) []byte {
	buf := make([]byte, block.Size+8)
	copy(buf, seed[:])
	binary.LittleEndian.PutUint64(buf[block.Size:], epoch)
	return buf
}

// PseudorandomGenerate is a pseudorandom generator (PRG) using a
// deterministic random bit generator (DRBG) as specified by NIST
// Special Publication 800-90A Revision 1. Blake3 is used here.
func PseudorandomGenerate(dst []byte, seed []byte, h *blake3.Hasher) error {
	// reset internal state
	h.Reset()
	if _, err := h.Write(seed); err != nil {
		return err
	}

	drbg := h.Digest()
	_, err := drbg.Read(dst)

	return err
}

func pseudorandomGenerateBlake2b(dst []byte, seed []byte) error {
	xof, err := blake2b.NewXOF(blake2b.OutputLengthUnknown, nil)
	if err != nil {
		return err
	}

	if _, err := xof.Write(seed); err != nil {
		return err
	}

	_, err = xof.Read(dst)
	return err
}
