package peqt

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/kkrt"
	"github.com/optable/kkrt/pkg/log"
)

// Sender is the sender side of the equality test.
type Sender struct {
	rw   io.ReadWriter
	opts []Option
}

// NewSender returns a sender talking to the receiver over rw.
func NewSender(rw io.ReadWriter, opts ...Option) *Sender {
	return &Sender{rw: rw, opts: opts}
}

// Send runs the equality test over the first n identifiers.
func (s *Sender) Send(ctx context.Context, n int64, identifiers <-chan []byte) error {
	if n <= 0 {
		return ErrNoIdentifiers
	}
	logger := log.FromContext(ctx, "peqt", "role", "sender")

	cfg, err := newConfig(s.opts)
	if err != nil {
		return err
	}

	// stage 1: base OTs and extension
	var x kkrt.Sender
	if _, err := x.Configure(false, StatSecParam, uint64(n)); err != nil {
		return err
	}
	if err := x.Bootstrap(ctx, cfg.provider, s.rw); err != nil {
		return err
	}
	if err := x.Init(ctx, uint64(n), rand.Reader, s.rw); err != nil {
		return err
	}
	logger.V(1).Info("Finished stage 1", "n", n)

	// stage 2: encode every identifier once its correction arrived
	buf := make([]byte, cfg.batchSize*block.Size)
	for start := int64(0); start < n; {
		count := cfg.batch(start, n)
		if err := x.RecvCorrection(ctx, s.rw, uint64(count)); err != nil {
			return err
		}

		for k := int64(0); k < count; k++ {
			id, err := next(identifiers)
			if err != nil {
				return fmt.Errorf("line %d: %w", start+k, err)
			}
			enc, err := x.EncodeBytes(uint64(start+k), id)
			if err != nil {
				return err
			}
			copy(buf[k*block.Size:], enc[:])
		}

		if _, err := s.rw.Write(buf[:count*block.Size]); err != nil {
			return err
		}
		logger.V(2).Info("batch sent", "start", start, "count", count)
		start += count
	}

	logger.V(1).Info("Finished stage 2")
	return nil
}
