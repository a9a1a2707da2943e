package baseot

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/zeebo/blake3"

	"github.com/optable/kkrt/internal/util"
	"github.com/optable/kkrt/pkg/bitvec"
	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/log"
)

const keyContext = "kkrt base ot 2024-01-01 random ot key"

// Simplest is the random OT variant of the simplest OT of Chou and
// Orlandi. The sender publishes A = aG, the receiver answers with
// B = bG or B = A + bG depending on its choice bit, and the keys are
// hashes of aB and a(B - A) on the sender side and bA on the receiver
// side. No ciphertext is exchanged since the keys themselves are the
// random OT output.
type Simplest struct {
	group group
	name  Group
}

var _ Provider = (*Simplest)(nil)

// NewSimplest returns a Simplest provider over the given ristretto
// implementation.
func NewSimplest(g Group) (*Simplest, error) {
	grp, err := newGroup(g)
	if err != nil {
		return nil, err
	}
	return &Simplest{group: grp, name: g}, nil
}

// deriveKey hashes the transcript of instance i together with the
// shared point into one block.
func deriveKey(h *blake3.Hasher, i int, A, B, K point) (b block.Block) {
	h.Reset()
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(i))
	h.Write(idx[:])
	h.Write(A[:])
	h.Write(B[:])
	h.Write(K[:])
	h.Digest().Read(b[:])
	return b
}

// Send runs the sender side of count random OTs over rw.
func (s *Simplest) Send(ctx context.Context, count int, rw io.ReadWriter) (SenderMaterial, error) {
	logger := log.FromContext(ctx, "baseot", "protocol", "simplest", "group", s.name.String())
	if count <= 0 {
		return SenderMaterial{}, ErrBaseCountMissMatch
	}

	a, A, err := s.group.generateKeys()
	if err != nil {
		return SenderMaterial{}, err
	}
	// T = aA
	T, err := a.mult(A)
	if err != nil {
		return SenderMaterial{}, err
	}

	if _, err := rw.Write(A[:]); err != nil {
		return SenderMaterial{}, err
	}

	buf := make([]byte, count*pointLen)
	if err := util.Sel(ctx, func() error {
		_, err := io.ReadFull(rw, buf)
		return err
	}); err != nil {
		return SenderMaterial{}, err
	}

	h := blake3.NewDeriveKey(keyContext)
	pairs := make([][2]block.Block, count)
	var B point
	for i := range pairs {
		copy(B[:], buf[i*pointLen:])
		// k0 = aB
		K0, err := a.mult(B)
		if err != nil {
			return SenderMaterial{}, err
		}
		// k1 = a(B - A) = aB - aA
		K1, err := s.group.sub(K0, T)
		if err != nil {
			return SenderMaterial{}, err
		}
		pairs[i][0] = deriveKey(h, i, A, B, K0)
		pairs[i][1] = deriveKey(h, i, A, B, K1)
	}

	logger.V(1).Info("base OT sent", "count", count)
	return SenderMaterial{Pairs: pairs}, nil
}

// Receive runs the receiver side of len(choices) random OTs over rw.
func (s *Simplest) Receive(ctx context.Context, choices *bitvec.BitVector, rw io.ReadWriter) (ReceiverMaterial, error) {
	logger := log.FromContext(ctx, "baseot", "protocol", "simplest", "group", s.name.String())
	count := choices.Len()
	if count <= 0 {
		return ReceiverMaterial{}, ErrBaseCountMissMatch
	}

	var A point
	if err := util.Sel(ctx, func() error {
		_, err := io.ReadFull(rw, A[:])
		return err
	}); err != nil {
		return ReceiverMaterial{}, err
	}

	secrets := make([]secret, count)
	out := make([]byte, count*pointLen)
	Bs := make([]point, count)
	for i := range secrets {
		b, B, err := s.group.generateKeys()
		if err != nil {
			return ReceiverMaterial{}, err
		}
		secrets[i] = b

		if choices.Bit(i) == 1 {
			// B = A + bG
			if B, err = s.group.add(A, B); err != nil {
				return ReceiverMaterial{}, err
			}
		}
		Bs[i] = B
		copy(out[i*pointLen:], B[:])
	}

	if _, err := rw.Write(out); err != nil {
		return ReceiverMaterial{}, err
	}

	h := blake3.NewDeriveKey(keyContext)
	blocks := make([]block.Block, count)
	for i := range blocks {
		// k = bA
		K, err := secrets[i].mult(A)
		if err != nil {
			return ReceiverMaterial{}, err
		}
		blocks[i] = deriveKey(h, i, A, Bs[i], K)
	}

	logger.V(1).Info("base OT received", "count", count)
	return ReceiverMaterial{Blocks: blocks, Choices: choices.Clone()}, nil
}
