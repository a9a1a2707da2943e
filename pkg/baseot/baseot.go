// Package baseot holds the base OT material the KKRT extension is
// bootstrapped from, and the providers that produce it.
//
// A base OT sender ends up with a pair of random blocks per instance,
// a base OT receiver with one block per instance selected by its
// choice bit. In KKRT the roles are reversed: the extension Receiver
// acts as base OT sender and the extension Sender as base OT receiver.
package baseot

import (
	"context"
	"errors"
	"io"

	"github.com/optable/kkrt/pkg/bitvec"
	"github.com/optable/kkrt/pkg/block"
)

var (
	ErrBaseCountMissMatch = errors.New("provided slices is not the same length as the number of base OT")
	ErrMaterialMismatch   = errors.New("receiver block differs from the sender block selected by its choice bit")
	ErrInvalidPoint       = errors.New("received bytes do not encode a valid group element")
)

// SenderMaterial is the output of the base OT sender.
type SenderMaterial struct {
	Pairs [][2]block.Block
}

// Len returns the number of base OT instances.
func (m SenderMaterial) Len() int {
	return len(m.Pairs)
}

// ReceiverMaterial is the output of the base OT receiver.
type ReceiverMaterial struct {
	Blocks  []block.Block
	Choices *bitvec.BitVector
}

// Len returns the number of base OT instances, or -1 when the blocks
// and the choice vector disagree on it.
func (m ReceiverMaterial) Len() int {
	if m.Choices == nil || m.Choices.Len() != len(m.Blocks) {
		return -1
	}
	return len(m.Blocks)
}

// Check verifies the base OT correctness invariant
// r.Blocks[i] == s.Pairs[i][r.Choices[i]]. It needs both parties'
// secrets and is meant for fixtures and tests only.
func Check(s SenderMaterial, r ReceiverMaterial) error {
	if r.Len() != s.Len() {
		return ErrBaseCountMissMatch
	}

	for i := range s.Pairs {
		if !s.Pairs[i][r.Choices.Bit(i)].Equal(r.Blocks[i]) {
			return ErrMaterialMismatch
		}
	}
	return nil
}

// Provider runs a base OT protocol over rw. Send is called by the
// extension Receiver, Receive by the extension Sender.
type Provider interface {
	Send(ctx context.Context, count int, rw io.ReadWriter) (SenderMaterial, error)
	Receive(ctx context.Context, choices *bitvec.BitVector, rw io.ReadWriter) (ReceiverMaterial, error)
}
