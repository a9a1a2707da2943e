package prng

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/optable/kkrt/pkg/block"
)

// PRNG is a deterministic pseudorandom source: AES-128 in counter
// mode keyed by a 128-bit seed. It implements io.Reader and is not
// safe for concurrent use.
type PRNG struct {
	stream cipher.Stream
	seed   block.Block
}

// New returns a PRNG seeded with seed.
func New(seed block.Block) *PRNG {
	aesBlock, err := aes.NewCipher(seed[:])
	if err != nil {
		// a 16 byte key is always a valid AES-128 key
		panic(err)
	}

	var iv [aes.BlockSize]byte
	return &PRNG{stream: cipher.NewCTR(aesBlock, iv[:]), seed: seed}
}

// Seed returns the seed p was created with.
func (p *PRNG) Seed() block.Block {
	return p.seed
}

// Read fills dst with pseudorandom bytes. It never fails.
func (p *PRNG) Read(dst []byte) (int, error) {
	for i := range dst {
		dst[i] = 0
	}
	p.stream.XORKeyStream(dst, dst)
	return len(dst), nil
}

// Block returns the next pseudorandom block.
func (p *PRNG) Block() (b block.Block) {
	p.Read(b[:])
	return
}

// Blocks fills dst with pseudorandom blocks.
func (p *PRNG) Blocks(dst []block.Block) {
	for i := range dst {
		p.Read(dst[i][:])
	}
}
