// Package kkrt implements the 1-out-of-N oblivious transfer extension
// of Kolesnikov, Kumaresan, Rosulek and Trieu (KKRT16) in its semi
// honest flavour.
//
// A Receiver and a Sender first share base OT material, the Receiver
// holding a pair of seeds per base OT and the Sender one seed of each
// pair selected by its secret choice bits. Init stretches that material
// into a correlation table of numOTs rows. For every index i the
// Receiver then encodes one codeword of its choice, sends the
// correction rows for a contiguous batch of indices, and the Sender,
// once it has received them, can encode any codeword for those
// indices. Both roles obtain the same encoding exactly when they
// encode the same codeword.
//
// Each extender is owned by a single goroutine; the two roles only
// talk through the io.ReadWriter passed to their methods.
package kkrt

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/optable/kkrt/internal/crypto"
	"github.com/optable/kkrt/internal/util"
	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/log"
)

const (
	roleSender   = "sender"
	roleReceiver = "receiver"
)

// extender is the state shared by both roles: the configuration, the
// Init epoch and the split bookkeeping.
type extender struct {
	role       string
	cfg        Config
	configured bool
	// epoch counts Init calls; every Init expands fresh columns.
	epoch uint64
	// splits is the next split counter.
	splits uint32
	// lineage lists the split counters from the root extender.
	lineage []uint32
}

func newExtender(role string, cfg Config) extender {
	return extender{role: role, cfg: cfg, configured: true}
}

// Config returns the configuration of the extender.
func (x *extender) Config() Config {
	return x.cfg
}

// BaseOTCount returns the number of base OTs the extender needs, or 0
// when it is not configured.
func (x *extender) BaseOTCount() int {
	if !x.configured {
		return 0
	}
	return x.cfg.BaseOTCount()
}

func (x *extender) logger(ctx context.Context) logr.Logger {
	l := log.FromContext(ctx, "extension", "role", x.role, "epoch", x.epoch)
	if len(x.lineage) > 0 {
		l = l.WithValues("lineage", x.lineage)
	}
	return l
}

func (x *extender) params(numOTs uint64) params {
	return params{
		Role:         x.role,
		BaseCount:    uint64(x.cfg.BaseOTCount()),
		StatSecParam: x.cfg.StatSecParam,
		NumOTs:       numOTs,
		PRG:          x.cfg.PRG.String(),
		Epoch:        x.epoch,
		Lineage:      x.lineage,
	}
}

// child reserves the next split counter and returns the extender
// state of the corresponding child.
func (x *extender) child() (extender, uint32, error) {
	if x.splits >= x.cfg.MaxSplits {
		return extender{}, 0, fmt.Errorf("%w: %d children already derived", ErrInsufficientSplitCapacity, x.splits)
	}

	ctr := x.splits
	x.splits++

	lineage := make([]uint32, len(x.lineage), len(x.lineage)+1)
	copy(lineage, x.lineage)
	return extender{
		role:       x.role,
		cfg:        x.cfg,
		configured: true,
		lineage:    append(lineage, ctr),
	}, ctr, nil
}

func (x *extender) checkInit(numOTs uint64) error {
	if !x.configured {
		return fmt.Errorf("%w: extender not configured", ErrInvalidConfiguration)
	}
	if numOTs == 0 {
		return fmt.Errorf("%w: number of OTs must be positive", ErrInvalidConfiguration)
	}
	return nil
}

func initErr(err error) error {
	return fmt.Errorf("%w: init: %w", ErrSessionFailed, err)
}

// session is the per Init state common to both roles.
type session struct {
	numOTs uint64
	key    block.Block
	code   *crypto.PseudorandomCode
	hash   *crypto.RowHasher
	// scratch row for the code output
	buf []byte
	// err is set once a wire operation failed; the session is dead.
	err error
}

func newSession(key block.Block, width int, numOTs uint64) (session, error) {
	code, err := crypto.NewPseudorandomCode(key, width)
	if err != nil {
		return session{}, err
	}

	return session{
		numOTs: numOTs,
		key:    key,
		code:   code,
		hash:   crypto.NewRowHasher(),
		buf:    make([]byte, code.Len()),
	}, nil
}

func (s *session) fail(err error) error {
	s.err = fmt.Errorf("%w: %w", ErrSessionFailed, err)
	return s.err
}

// expand stretches every seed into a column of numOTs bits and returns
// the numOTs rows of the transposed matrix.
func expand(mode PRGMode, seeds []block.Block, epoch, numOTs uint64) ([][]byte, error) {
	prg, err := crypto.NewPRG(mode)
	if err != nil {
		return nil, err
	}

	colBytes := int((numOTs + 7) / 8)
	flat := make([]byte, len(seeds)*colBytes)
	cols := make([][]byte, len(seeds))
	for j, seed := range seeds {
		cols[j] = flat[j*colBytes : (j+1)*colBytes]
		if err := prg.Generate(cols[j], crypto.ColumnSeed(seed, epoch)); err != nil {
			return nil, err
		}
	}

	return util.ConcurrentTransposeBits(cols, int(numOTs)), nil
}

// expandPair expands two seed sets concurrently.
func expandPair(mode PRGMode, s0, s1 []block.Block, epoch, numOTs uint64) (t0, t1 [][]byte, err error) {
	var g errgroup.Group
	g.Go(func() (err error) {
		t0, err = expand(mode, s0, epoch, numOTs)
		return err
	})
	g.Go(func() (err error) {
		t1, err = expand(mode, s1, epoch, numOTs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return t0, t1, nil
}

// checkRange verifies that [start, start+count) is non empty and ends
// within numOTs.
func checkRange(start, count, numOTs uint64) error {
	if count == 0 || start+count > numOTs || start+count < start {
		return fmt.Errorf("%w: batch [%d, %d+%d) with %d OTs", ErrOutOfRange, start, start, count, numOTs)
	}
	return nil
}

// allSet reports whether every bit of [start, start+count) is set.
func allSet(b *bitset.BitSet, start, count uint64) (uint64, bool) {
	for i := start; i < start+count; i++ {
		if !b.Test(uint(i)) {
			return i, false
		}
	}
	return 0, true
}
