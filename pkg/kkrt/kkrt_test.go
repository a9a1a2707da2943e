package kkrt

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/optable/kkrt/internal/crypto"
	"github.com/optable/kkrt/internal/transport"
	"github.com/optable/kkrt/pkg/baseot"
	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/prng"
)

const (
	statSec = 40
	numOTs  = 128
	trials  = 16
)

var (
	seed0 = block.FromUint64s(4253465, 3434565)
	seed1 = block.FromUint64s(42532335, 334565)
)

// newPair returns a configured Sender and Receiver loaded with faked
// base OTs, and the two ends of an in-memory channel.
func newPair(t *testing.T, opts ...Option) (*Sender, *Receiver, *transport.Conn, *transport.Conn) {
	t.Helper()

	s, r := &Sender{}, &Receiver{}
	baseCount, err := s.Configure(false, statSec, numOTs, opts...)
	require.NoError(t, err)
	_, err = r.Configure(false, statSec, numOTs, opts...)
	require.NoError(t, err)

	sm, rm, err := baseot.Fake(prng.New(seed0), baseCount)
	require.NoError(t, err)
	require.NoError(t, s.SetBaseOTs(rm))
	require.NoError(t, r.SetBaseOTs(sm))

	sc, rc := transport.Pipe()
	t.Cleanup(func() {
		sc.Close()
		rc.Close()
	})
	return s, r, sc, rc
}

// initPair runs both Inits concurrently and returns the first error.
func initPair(ctx context.Context, s *Sender, r *Receiver, n uint64, sc, rc io.ReadWriter) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Init(ctx, n, prng.New(seed0), sc)
	})
	g.Go(func() error {
		return r.Init(ctx, n, prng.New(seed1), rc)
	})
	return g.Wait()
}

// runBatches drives one full pass over [0, n) with the given batch
// sizes, cycling through them, and checks agreement and divergence.
// It returns the Receiver encodings.
func runBatches(t *testing.T, s *Sender, r *Receiver, sc, rc io.ReadWriter, n uint64, sizes ...uint64) []block.Block {
	t.Helper()
	ctx := context.Background()
	p := prng.New(block.FromUint64s(uint64(len(sizes)), n))

	encodings := make([]block.Block, n)
	inputs := make([]block.Block, n)
	for i, k := uint64(0), 0; i < n; k++ {
		ss := sizes[k%len(sizes)]
		if ss > n-i {
			ss = n - i
		}

		for j := i; j < i+ss; j++ {
			inputs[j] = p.Block()
			var err error
			encodings[j], err = r.Encode(j, inputs[j])
			require.NoError(t, err)
		}

		require.NoError(t, r.SendCorrection(ctx, rc, ss))
		require.NoError(t, s.RecvCorrection(ctx, sc, ss))

		for j := i; j < i+ss; j++ {
			enc, err := s.Encode(j, inputs[j])
			require.NoError(t, err)
			require.Equal(t, encodings[j], enc, "index %d", j)

			for trial := 0; trial < trials; trial++ {
				enc, err = s.Encode(j, p.Block())
				require.NoError(t, err)
				require.NotEqual(t, encodings[j], enc, "index %d trial %d", j, trial)
			}
		}
		i += ss
	}

	require.Equal(t, n, r.Sent())
	require.Equal(t, n, s.Corrected())
	return encodings
}

func TestCorrectness(t *testing.T) {
	s, r, sc, rc := newPair(t)
	require.Equal(t, 512, s.BaseOTCount())
	require.Equal(t, 512, r.BaseOTCount())

	require.NoError(t, initPair(context.Background(), s, r, numOTs, sc, rc))
	runBatches(t, s, r, sc, rc, numOTs, 10)
}

func TestBatchPartition(t *testing.T) {
	for _, tc := range []struct {
		name  string
		sizes []uint64
	}{
		{"uniform 10", []uint64{10}},
		{"singletons", []uint64{1}},
		{"whole", []uint64{numOTs}},
		{"mixed", []uint64{3, 1, 50, 7}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, r, sc, rc := newPair(t)
			require.NoError(t, initPair(context.Background(), s, r, numOTs, sc, rc))
			runBatches(t, s, r, sc, rc, numOTs, tc.sizes...)
		})
	}
}

func TestReInit(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()

	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))
	first := runBatches(t, s, r, sc, rc, numOTs, 10)

	// a second Init resets the cursors and expands fresh rows
	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))
	require.Zero(t, r.Sent())
	require.Zero(t, s.Corrected())
	second := runBatches(t, s, r, sc, rc, numOTs, 10)

	for i := range first {
		require.NotEqual(t, first[i], second[i], "index %d", i)
	}

	// a smaller session is fine too
	require.NoError(t, initPair(ctx, s, r, 17, sc, rc))
	runBatches(t, s, r, sc, rc, 17, 4)
}

func TestReInitStaleCorrection(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()
	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))

	_, err := r.Encode(0, block.FromUint64s(0, 1))
	require.NoError(t, err)
	require.NoError(t, r.SendCorrection(ctx, rc, 1))

	// the Sender never consumed the correction left on the channel
	err = initPair(ctx, s, r, numOTs, sc, rc)
	require.ErrorIs(t, err, ErrProtocolDesync)
	require.ErrorIs(t, err, ErrSessionFailed)

	_, err = s.Encode(0, block.Block{})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestParamsMismatch(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()

	var serr, rerr error
	var g errgroup.Group
	g.Go(func() error {
		serr = s.Init(ctx, numOTs, prng.New(seed0), sc)
		return nil
	})
	g.Go(func() error {
		rerr = r.Init(ctx, numOTs+1, prng.New(seed1), rc)
		return nil
	})
	require.NoError(t, g.Wait())
	require.ErrorIs(t, serr, ErrProtocolDesync)
	require.ErrorIs(t, rerr, ErrProtocolDesync)
}

func TestSameRoles(t *testing.T) {
	s, _, sc, rc := newPair(t)
	s2, _, _, _ := newPair(t)
	ctx := context.Background()

	var errs [2]error
	var g errgroup.Group
	g.Go(func() error {
		errs[0] = s.Init(ctx, numOTs, prng.New(seed0), sc)
		return nil
	})
	g.Go(func() error {
		errs[1] = s2.Init(ctx, numOTs, prng.New(seed1), rc)
		return nil
	})
	require.NoError(t, g.Wait())
	require.ErrorIs(t, errs[0], ErrProtocolDesync)
	require.ErrorIs(t, errs[1], ErrProtocolDesync)
}

func TestOrdering(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()
	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))

	x := block.FromUint64s(7, 7)

	// Sender before any correction
	_, err := s.Encode(0, x)
	require.ErrorIs(t, err, ErrCorrectionNotYetReceived)

	// correction before encoding
	require.ErrorIs(t, r.SendCorrection(ctx, rc, 1), ErrOutOfRange)

	for i := uint64(0); i < 4; i++ {
		_, err = r.Encode(i, x)
		require.NoError(t, err)
	}

	// index 4 was never encoded
	require.ErrorIs(t, r.SendCorrection(ctx, rc, 5), ErrOutOfRange)
	require.Zero(t, r.Sent())

	require.NoError(t, r.SendCorrection(ctx, rc, 4))
	require.NoError(t, s.RecvCorrection(ctx, sc, 4))

	_, err = s.Encode(3, x)
	require.NoError(t, err)
	_, err = s.Encode(4, x)
	require.ErrorIs(t, err, ErrCorrectionNotYetReceived)

	// local errors leave the session usable
	_, err = r.Encode(4, x)
	require.NoError(t, err)
	require.NoError(t, r.SendCorrection(ctx, rc, 1))
	require.NoError(t, s.RecvCorrection(ctx, sc, 1))
	_, err = s.Encode(4, x)
	require.NoError(t, err)
}

func TestReceiverEncodeWindow(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()
	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))

	x := block.FromUint64s(1, 2)
	_, err := r.Encode(5, x)
	require.NoError(t, err)
	_, err = r.Encode(5, x)
	require.ErrorIs(t, err, ErrAlreadyEncoded)

	_, err = r.Encode(numOTs, x)
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = r.Encode(0, x)
	require.NoError(t, err)
	require.NoError(t, r.SendCorrection(ctx, rc, 1))

	// index 0 is behind the sent cursor
	_, err = r.Encode(0, x)
	require.ErrorIs(t, err, ErrOutOfRange)

	require.ErrorIs(t, r.SendCorrection(ctx, rc, 0), ErrOutOfRange)
	require.ErrorIs(t, r.SendCorrection(ctx, rc, numOTs), ErrOutOfRange)
	require.ErrorIs(t, s.RecvCorrection(ctx, sc, 0), ErrOutOfRange)
	require.ErrorIs(t, s.RecvCorrection(ctx, sc, numOTs+1), ErrOutOfRange)
}

func TestNotInitialized(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()

	_, err := s.Encode(0, block.Block{})
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = r.Encode(0, block.Block{})
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, r.SendCorrection(ctx, rc, 1), ErrNotInitialized)
	require.ErrorIs(t, s.RecvCorrection(ctx, sc, 1), ErrNotInitialized)

	// base OTs are required
	var fresh Sender
	_, err = fresh.Configure(false, statSec, numOTs)
	require.NoError(t, err)
	require.ErrorIs(t, fresh.Init(ctx, numOTs, prng.New(seed0), sc), ErrNotInitialized)

	// so is a configuration
	var zero Receiver
	require.ErrorIs(t, zero.Init(ctx, numOTs, prng.New(seed1), rc), ErrInvalidConfiguration)
	require.ErrorIs(t, zero.SetBaseOTs(baseot.SenderMaterial{}), ErrInvalidConfiguration)
	require.Zero(t, zero.BaseOTCount())

	require.ErrorIs(t, s.Init(ctx, 0, prng.New(seed0), sc), ErrInvalidConfiguration)
}

func TestSetBaseOTsLength(t *testing.T) {
	s, r, _, _ := newPair(t)

	sm, rm, err := baseot.Fake(prng.New(seed1), 128)
	require.NoError(t, err)
	require.ErrorIs(t, s.SetBaseOTs(rm), ErrLengthMismatch)
	require.ErrorIs(t, r.SetBaseOTs(sm), ErrLengthMismatch)

	rm.Choices = nil
	require.ErrorIs(t, s.SetBaseOTs(rm), ErrLengthMismatch)
}

func TestRecvCorrectionBatchMismatch(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()
	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))

	for i := uint64(0); i < 5; i++ {
		_, err := r.Encode(i, block.FromUint64s(0, i))
		require.NoError(t, err)
	}
	require.NoError(t, r.SendCorrection(ctx, rc, 5))

	err := s.RecvCorrection(ctx, sc, 10)
	require.ErrorIs(t, err, ErrProtocolDesync)
	require.ErrorIs(t, err, ErrSessionFailed)

	// the session is dead
	_, err = s.Encode(0, block.Block{})
	require.ErrorIs(t, err, ErrSessionFailed)
	require.ErrorIs(t, s.RecvCorrection(ctx, sc, 5), ErrSessionFailed)
}

func TestRecvCorrectionCancel(t *testing.T) {
	s, r, sc, rc := newPair(t)
	require.NoError(t, initPair(context.Background(), s, r, numOTs, sc, rc))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.RecvCorrection(ctx, sc, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrSessionFailed)
}

func TestChannelClosed(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()
	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))

	require.NoError(t, rc.Close())
	err := s.RecvCorrection(ctx, sc, 1)
	require.ErrorIs(t, err, ErrChannelClosed)

	_, err = r.Encode(0, block.Block{})
	require.NoError(t, err)
	err = r.SendCorrection(ctx, rc, 1)
	require.ErrorIs(t, err, ErrChannelClosed)
	require.ErrorIs(t, err, ErrSessionFailed)
}

func TestEncodeVariants(t *testing.T) {
	s, r, sc, rc := newPair(t)
	ctx := context.Background()
	require.NoError(t, initPair(ctx, s, r, numOTs, sc, rc))

	long := make([]byte, 32)
	x := block.FromUint64s(3, 4)
	require.NoError(t, r.EncodeInto(0, x, long))
	short, err := r.EncodeBytes(1, []byte("alice@example.com"))
	require.NoError(t, err)
	require.ErrorIs(t, r.EncodeInto(2, x, nil), ErrLengthMismatch)

	require.NoError(t, r.SendCorrection(ctx, rc, 2))
	require.NoError(t, s.RecvCorrection(ctx, sc, 2))

	got := make([]byte, 32)
	require.NoError(t, s.EncodeInto(0, x, got))
	require.Equal(t, long, got)

	// the 128-bit encoding is a prefix of the longer one
	b, err := s.Encode(0, x)
	require.NoError(t, err)
	require.Equal(t, long[:block.Size], b[:])

	b, err = s.EncodeBytes(1, []byte("alice@example.com"))
	require.NoError(t, err)
	require.Equal(t, short, b)
	b, err = s.EncodeBytes(1, []byte("bob@example.com"))
	require.NoError(t, err)
	require.NotEqual(t, short, b)
}

func TestBlake2bPRG(t *testing.T) {
	s, r, sc, rc := newPair(t, WithPRG(PRGBlake2b))
	require.NoError(t, initPair(context.Background(), s, r, numOTs, sc, rc))
	runBatches(t, s, r, sc, rc, numOTs, 32)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	server, client, err := transport.Loopback(ctx)
	require.NoError(t, err)
	defer server.Close()
	defer client.Close()

	cfg, err := Configure(false, statSec, numOTs)
	require.NoError(t, err)
	s, err := NewSender(cfg)
	require.NoError(t, err)
	r, err := NewReceiver(cfg)
	require.NoError(t, err)

	ot, err := baseot.NewSimplest(baseot.GroupGR)
	require.NoError(t, err)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Bootstrap(gctx, ot, server); err != nil {
			return err
		}
		return s.Init(gctx, numOTs, prng.New(seed0), server)
	})
	g.Go(func() error {
		if err := r.Bootstrap(gctx, ot, client); err != nil {
			return err
		}
		return r.Init(gctx, numOTs, prng.New(seed1), client)
	})
	require.NoError(t, g.Wait())

	runBatches(t, s, r, server, client, numOTs, 10)
}

func TestCommitmentViolation(t *testing.T) {
	_, r, peer, rc := newPair(t)
	ctx := context.Background()

	// a cheating sender opens a seed other than the committed one
	sender := r.params(numOTs)
	sender.Role = roleSender
	sender.Epoch = 1
	b, err := paramsEncMode.Marshal(sender)
	require.NoError(t, err)
	require.NoError(t, writeFrame(peer, frameParams, b))

	c := crypto.Commit(block.FromUint64s(1, 1))
	require.NoError(t, writeFrame(peer, frameCommit, c[:]))
	opened := block.FromUint64s(2, 2)
	require.NoError(t, writeFrame(peer, frameOpen, opened[:]))

	err = r.Init(ctx, numOTs, prng.New(seed1), rc)
	require.ErrorIs(t, err, ErrSecurityViolation)
}
