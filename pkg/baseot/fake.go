package baseot

import (
	"context"
	"io"

	"github.com/optable/kkrt/pkg/bitvec"
	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/prng"
)

// Fake samples base OT material locally instead of running a base OT
// protocol: the choice bits are read from r first, then the sender
// pairs, and the receiver blocks are selected from the pairs. Both
// parties' secrets come from one generator, so Fake is a test fixture.
func Fake(r io.Reader, count int) (SenderMaterial, ReceiverMaterial, error) {
	choices := bitvec.New(count)
	if err := choices.Randomize(r); err != nil {
		return SenderMaterial{}, ReceiverMaterial{}, err
	}

	pairs := make([][2]block.Block, count)
	for i := range pairs {
		for j := range pairs[i] {
			if _, err := io.ReadFull(r, pairs[i][j][:]); err != nil {
				return SenderMaterial{}, ReceiverMaterial{}, err
			}
		}
	}

	blocks := make([]block.Block, count)
	for i := range blocks {
		blocks[i] = pairs[i][choices.Bit(i)]
	}

	return SenderMaterial{Pairs: pairs}, ReceiverMaterial{Blocks: blocks, Choices: choices}, nil
}

// FakeProvider is a Provider that never touches the channel. Both
// parties hold the same seed and regenerate the same sender pairs from
// it. It stands in for a real base OT in tests and demonstrations.
type FakeProvider struct {
	Seed block.Block
}

var _ Provider = FakeProvider{}

func (f FakeProvider) pairs(count int) [][2]block.Block {
	p := prng.New(f.Seed)
	pairs := make([][2]block.Block, count)
	for i := range pairs {
		pairs[i][0] = p.Block()
		pairs[i][1] = p.Block()
	}
	return pairs
}

// Send returns count pairs derived from the shared seed.
func (f FakeProvider) Send(_ context.Context, count int, _ io.ReadWriter) (SenderMaterial, error) {
	return SenderMaterial{Pairs: f.pairs(count)}, nil
}

// Receive selects one block of each derived pair.
func (f FakeProvider) Receive(_ context.Context, choices *bitvec.BitVector, _ io.ReadWriter) (ReceiverMaterial, error) {
	pairs := f.pairs(choices.Len())
	blocks := make([]block.Block, len(pairs))
	for i := range blocks {
		blocks[i] = pairs[i][choices.Bit(i)]
	}
	return ReceiverMaterial{Blocks: blocks, Choices: choices.Clone()}, nil
}
