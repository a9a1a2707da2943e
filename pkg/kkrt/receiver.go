package kkrt

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"

	"github.com/optable/kkrt/internal/crypto"
	"github.com/optable/kkrt/internal/util"
	"github.com/optable/kkrt/pkg/baseot"
	"github.com/optable/kkrt/pkg/block"
)

// Receiver is the KKRT receiver. It acts as base OT sender, encodes
// one codeword per index and sends the matching corrections. The zero
// value must be configured before use.
type Receiver struct {
	extender
	pairs [][2]block.Block
	sess  *receiverSession
}

type receiverSession struct {
	session
	t0 [][]byte
	// corr starts as t0 ^ t1; encoding index i xors C(x) into row i.
	corr    [][]byte
	encoded *bitset.BitSet
	// sent is the number of correction rows already sent.
	sent uint64
}

// NewReceiver returns a Receiver configured with cfg.
func NewReceiver(cfg Config) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Receiver{extender: newExtender(roleReceiver, cfg)}, nil
}

// Configure (re)configures r, dropping any base material and session,
// and returns the number of base OTs required.
func (r *Receiver) Configure(maliciousSecure bool, statSecParam, numOTs uint64, opts ...Option) (int, error) {
	cfg, err := Configure(maliciousSecure, statSecParam, numOTs, opts...)
	if err != nil {
		return 0, err
	}

	*r = Receiver{extender: newExtender(roleReceiver, cfg)}
	return r.BaseOTCount(), nil
}

// SetBaseOTs installs the output of a base OT run in which r was the
// sender. Any current session is discarded.
func (r *Receiver) SetBaseOTs(m baseot.SenderMaterial) error {
	if !r.configured {
		return fmt.Errorf("%w: extender not configured", ErrInvalidConfiguration)
	}
	if n := m.Len(); n != r.BaseOTCount() {
		return fmt.Errorf("%w: got %d base OTs, need %d", ErrLengthMismatch, n, r.BaseOTCount())
	}

	r.pairs = append([][2]block.Block(nil), m.Pairs...)
	r.sess = nil
	return nil
}

// Bootstrap runs the base OTs with p over rw and installs the result.
func (r *Receiver) Bootstrap(ctx context.Context, p baseot.Provider, rw io.ReadWriter) error {
	if !r.configured {
		return fmt.Errorf("%w: extender not configured", ErrInvalidConfiguration)
	}

	m, err := p.Send(ctx, r.BaseOTCount(), rw)
	if err != nil {
		return fmt.Errorf("base OT: %w", err)
	}

	r.logger(ctx).V(1).Info("base OTs sent", "count", m.Len())
	return r.SetBaseOTs(m)
}

// Init agrees on the session parameters with the peer, flips the code
// key and expands both seeds of every base OT into numOTs correlation
// rows. prng supplies the local share of the code key. Any previous
// session is discarded.
func (r *Receiver) Init(ctx context.Context, numOTs uint64, prng io.Reader, rw io.ReadWriter) error {
	if err := r.checkInit(numOTs); err != nil {
		return err
	}
	if r.pairs == nil {
		return fmt.Errorf("%w: base OTs not set", ErrNotInitialized)
	}

	r.sess = nil
	r.epoch++
	logger := r.logger(ctx)
	logger.V(1).Info("init", "numOTs", numOTs)

	if err := exchangeParams(ctx, rw, r.params(numOTs)); err != nil {
		return initErr(err)
	}

	key, err := r.flipCoins(ctx, prng, rw)
	if err != nil {
		return initErr(err)
	}

	s0 := make([]block.Block, len(r.pairs))
	s1 := make([]block.Block, len(r.pairs))
	for j, p := range r.pairs {
		s0[j], s1[j] = p[0], p[1]
	}

	t0, t1, err := expandPair(r.cfg.PRG, s0, s1, r.epoch, numOTs)
	if err != nil {
		return initErr(err)
	}
	for i := range t1 {
		util.Xor(t1[i], t0[i])
	}

	sess, err := newSession(key, r.cfg.BaseOTCount(), numOTs)
	if err != nil {
		return initErr(err)
	}
	r.sess = &receiverSession{
		session: sess,
		t0:      t0,
		corr:    t1,
		encoded: bitset.New(uint(numOTs)),
	}

	logger.V(1).Info("session ready")
	return nil
}

// flipCoins answers the peer commitment with a local seed and checks
// the opening. The code key is the xor of both seeds.
func (r *Receiver) flipCoins(ctx context.Context, prng io.Reader, rw io.ReadWriter) (key block.Block, err error) {
	commitment, err := readFrame(ctx, rw, frameCommit, crypto.CommitmentLen)
	if err != nil {
		return key, err
	}

	var seed block.Block
	if _, err := io.ReadFull(prng, seed[:]); err != nil {
		return key, err
	}
	if err := writeFrame(rw, frameSeed, seed[:]); err != nil {
		return key, err
	}

	b, err := readFrame(ctx, rw, frameOpen, block.Size)
	if err != nil {
		return key, err
	}
	peer, err := block.FromBytes(b)
	if err != nil {
		return key, err
	}

	opened := crypto.Commit(peer)
	if subtle.ConstantTimeCompare(opened[:], commitment) != 1 {
		return key, fmt.Errorf("%w: code key commitment does not open", ErrSecurityViolation)
	}

	return seed.Xor(peer), nil
}

func (r *Receiver) session() (*receiverSession, error) {
	if r.sess == nil {
		return nil, ErrNotInitialized
	}
	if r.sess.err != nil {
		return nil, r.sess.err
	}
	return r.sess, nil
}

// Sent returns the number of indices whose correction has been sent in
// the current session.
func (r *Receiver) Sent() uint64 {
	if r.sess == nil {
		return 0
	}
	return r.sess.sent
}

// EncodeInto writes the encoding of codeword at index i into dst and
// records the correction for i. dst may have any non zero length. Each
// index can be encoded once, before its correction is sent.
func (r *Receiver) EncodeInto(i uint64, codeword block.Block, dst []byte) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	if len(dst) == 0 {
		return fmt.Errorf("%w: empty encoding buffer", ErrLengthMismatch)
	}
	if i >= sess.numOTs || i < sess.sent {
		return fmt.Errorf("%w: index %d outside [%d, %d)", ErrOutOfRange, i, sess.sent, sess.numOTs)
	}
	if sess.encoded.Test(uint(i)) {
		return fmt.Errorf("%w: index %d", ErrAlreadyEncoded, i)
	}

	// u_i = t0_i ^ t1_i ^ C(x)
	sess.code.Encode(sess.buf, codeword)
	util.Xor(sess.corr[i], sess.buf)
	sess.encoded.Set(uint(i))

	// H(i, t0_i)
	sess.hash.Sum(dst, i, sess.t0[i])
	return nil
}

// Encode returns the 128-bit encoding of codeword at index i.
func (r *Receiver) Encode(i uint64, codeword block.Block) (b block.Block, err error) {
	err = r.EncodeInto(i, codeword, b[:])
	return
}

// EncodeBytes encodes an input of any length at index i. The input is
// first compressed to a codeword with a hash keyed by the session code
// key, exactly as the Sender does.
func (r *Receiver) EncodeBytes(i uint64, src []byte) (block.Block, error) {
	sess, err := r.session()
	if err != nil {
		return block.Block{}, err
	}
	return r.Encode(i, crypto.Compress(sess.key, src))
}

// SendCorrection sends the correction rows of the next count indices.
// Every one of them must have been encoded.
func (r *Receiver) SendCorrection(ctx context.Context, rw io.ReadWriter, count uint64) error {
	sess, err := r.session()
	if err != nil {
		return err
	}
	if err := checkRange(sess.sent, count, sess.numOTs); err != nil {
		return err
	}
	if i, ok := allSet(sess.encoded, sess.sent, count); !ok {
		return fmt.Errorf("%w: index %d not encoded", ErrOutOfRange, i)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := sess.sent
	payload := correctionPayload(start, count, sess.corr, r.cfg.rowBytes())
	if err := writeFrame(rw, frameCorrection, payload); err != nil {
		return sess.fail(err)
	}
	sess.sent += count

	r.logger(ctx).V(2).Info("correction sent", "start", start, "count", count)
	return nil
}

// Split derives a new Receiver whose base seeds are independent of the
// seeds of r and of every other child. The child has the configuration
// of r but no session and must be initialized. The matching Sender
// must be split the same number of times, in the same order.
func (r *Receiver) Split() (*Receiver, error) {
	if r.pairs == nil {
		return nil, fmt.Errorf("%w: base OTs not set", ErrInsufficientSplitCapacity)
	}

	x, ctr, err := r.child()
	if err != nil {
		return nil, err
	}

	pairs := make([][2]block.Block, len(r.pairs))
	for j := range pairs {
		pairs[j][0] = crypto.DeriveSeed(r.pairs[j][0], uint64(ctr))
		pairs[j][1] = crypto.DeriveSeed(r.pairs[j][1], uint64(ctr))
	}

	return &Receiver{extender: x, pairs: pairs}, nil
}
