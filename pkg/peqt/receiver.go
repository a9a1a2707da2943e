package peqt

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/optable/kkrt/internal/util"
	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/kkrt"
	"github.com/optable/kkrt/pkg/log"
)

// Receiver is the receiver side of the equality test.
type Receiver struct {
	rw   io.ReadWriter
	opts []Option
}

// NewReceiver returns a receiver talking to the sender over rw.
func NewReceiver(rw io.ReadWriter, opts ...Option) *Receiver {
	return &Receiver{rw: rw, opts: opts}
}

// Intersect runs the equality test over the first n identifiers and
// returns, in line order, the identifiers that the sender holds on the
// same line.
func (r *Receiver) Intersect(ctx context.Context, n int64, identifiers <-chan []byte) ([][]byte, error) {
	if n <= 0 {
		return nil, ErrNoIdentifiers
	}
	logger := log.FromContext(ctx, "peqt", "role", "receiver")

	cfg, err := newConfig(r.opts)
	if err != nil {
		return nil, err
	}

	// stage 1: base OTs and extension
	var x kkrt.Receiver
	if _, err := x.Configure(false, StatSecParam, uint64(n)); err != nil {
		return nil, err
	}
	if err := x.Bootstrap(ctx, cfg.provider, r.rw); err != nil {
		return nil, err
	}
	if err := x.Init(ctx, uint64(n), rand.Reader, r.rw); err != nil {
		return nil, err
	}
	logger.V(1).Info("Finished stage 1", "n", n)

	// stage 2: encode a batch, send its corrections and compare with
	// the sender encodings
	var intersected [][]byte
	ids := make([][]byte, cfg.batchSize)
	encodings := make([]block.Block, cfg.batchSize)
	buf := make([]byte, cfg.batchSize*block.Size)
	for start := int64(0); start < n; {
		count := cfg.batch(start, n)
		for k := int64(0); k < count; k++ {
			if ids[k], err = next(identifiers); err != nil {
				return nil, fmt.Errorf("line %d: %w", start+k, err)
			}
			if encodings[k], err = x.EncodeBytes(uint64(start+k), ids[k]); err != nil {
				return nil, err
			}
		}

		if err := x.SendCorrection(ctx, r.rw, uint64(count)); err != nil {
			return nil, err
		}

		remote := buf[:count*block.Size]
		if err := util.Sel(ctx, func() error {
			_, err := io.ReadFull(r.rw, remote)
			return err
		}); err != nil {
			return nil, err
		}

		for k := int64(0); k < count; k++ {
			var enc block.Block
			copy(enc[:], remote[k*block.Size:])
			if enc.Equal(encodings[k]) {
				intersected = append(intersected, ids[k])
			}
		}
		logger.V(2).Info("batch compared", "start", start, "count", count)
		start += count
	}

	logger.V(1).Info("Finished stage 2", "intersected", len(intersected))
	return intersected, nil
}
