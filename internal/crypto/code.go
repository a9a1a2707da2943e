package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/optable/kkrt/pkg/block"
	"github.com/twmb/murmur3"
	"github.com/zeebo/blake3"
)

const codeKeyContext = "optable kkrt 2022-03 pseudorandom code keys"

var ErrCodeWidth = fmt.Errorf("pseudorandom code width must be a positive multiple of %d bits", aes.BlockSize*8)

// PseudorandomCode is the KKRT code C(x). It is implemented as
// C(x) = AES(k_0, x) || AES(k_1, x) || ... || AES(k_{w-1}, x)
// with w = width/128 independent AES-128 keys derived from a shared
// 128-bit code key. Both parties derive the same keys from the coin
// flipped code key, so the code is bit exact on both sides.
type PseudorandomCode struct {
	blocks []cipher.Block
}

// NewPseudorandomCode derives a code of width bits from key.
func NewPseudorandomCode(key block.Block, width int) (*PseudorandomCode, error) {
	if width <= 0 || width%(aes.BlockSize*8) != 0 {
		return nil, ErrCodeWidth
	}

	n := width / (aes.BlockSize * 8)
	keys := make([]byte, n*aes.BlockSize)
	blake3.DeriveKey(codeKeyContext, key[:], keys)

	c := &PseudorandomCode{blocks: make([]cipher.Block, n)}
	for i := range c.blocks {
		aesBlock, err := aes.NewCipher(keys[i*aes.BlockSize : (i+1)*aes.BlockSize])
		if err != nil {
			return nil, err
		}
		c.blocks[i] = aesBlock
	}

	return c, nil
}

// Len returns the code output length in bytes.
func (c *PseudorandomCode) Len() int {
	return len(c.blocks) * aes.BlockSize
}

// Encode writes C(x) into dst, which must be Len() bytes long.
func (c *PseudorandomCode) Encode(dst []byte, x block.Block) {
	if len(dst) != c.Len() {
		panic(ErrCodeWidth)
	}

	for i, aesBlock := range c.blocks {
		aesBlock.Encrypt(dst[i*aes.BlockSize:(i+1)*aes.BlockSize], x[:])
	}
}

// Compress reduces an input of any length to a codeword block with
// the Murmur3 128-bit hash seeded by the two words of key. It is not
// collision resistant against an adversary that knows key; it serves
// identifiers chosen by the party that encodes them.
func Compress(key block.Block, src []byte) block.Block {
	seed1, seed2 := key.Uint64s()
	hi, lo := murmur3.SeedSum128(seed1, seed2, src)
	return block.FromUint64s(hi, lo)
}
