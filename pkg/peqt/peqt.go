// Package peqt implements a batched private equality test on top of
// the KKRT extension.
//
// Both parties hold n identifiers, one per line. For every line i the
// receiver encodes its identifier x_i at OT index i, and the sender
// encodes its own identifier y_i at the same index and returns the
// encoding. Encodings agree exactly when x_i == y_i, so the receiver
// learns which lines hold equal identifiers and nothing else, while
// the sender learns nothing.
package peqt

import (
	"errors"

	"github.com/optable/kkrt/pkg/baseot"
)

const (
	// StatSecParam is the statistical security parameter of the
	// underlying extension.
	StatSecParam = 40
	// DefaultBatchSize is the number of lines per correction batch.
	DefaultBatchSize = 4096
)

var (
	ErrNoIdentifiers = errors.New("at least one identifier is required")
	ErrShortInput    = errors.New("identifier stream ended before n identifiers")
)

type config struct {
	provider  baseot.Provider
	batchSize int64
}

// Option tunes a Sender or a Receiver.
type Option func(*config)

// WithBaseOT replaces the base OT provider. The default runs the
// simplest OT over ristretto255.
func WithBaseOT(p baseot.Provider) Option {
	return func(c *config) {
		c.provider = p
	}
}

// WithBatchSize sets the number of lines per correction batch. Both
// parties must use the same value.
func WithBatchSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func newConfig(opts []Option) (config, error) {
	c := config{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&c)
	}

	if c.provider == nil {
		ot, err := baseot.NewSimplest(baseot.GroupR255)
		if err != nil {
			return c, err
		}
		c.provider = ot
	}
	return c, nil
}

// batch returns the size of the batch starting at line start.
func (c config) batch(start, n int64) int64 {
	if n-start < c.batchSize {
		return n - start
	}
	return c.batchSize
}

// next reads the next identifier from identifiers.
func next(identifiers <-chan []byte) ([]byte, error) {
	id, ok := <-identifiers
	if !ok {
		return nil, ErrShortInput
	}
	return id, nil
}
