package kkrt

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/optable/kkrt/internal/crypto"
	"github.com/optable/kkrt/internal/util"
	"github.com/optable/kkrt/pkg/baseot"
	"github.com/optable/kkrt/pkg/bitvec"
	"github.com/optable/kkrt/pkg/block"
)

// Sender is the KKRT sender. It acts as base OT receiver and, after
// receiving corrections, can encode any codeword for the corrected
// indices. The zero value must be configured before use.
type Sender struct {
	extender
	// blocks are the base OT seeds selected by choices.
	blocks  []block.Block
	choices *bitvec.BitVector
	// s is choices packed least significant bit first.
	s    []byte
	sess *senderSession
}

type senderSession struct {
	session
	// q holds the correlation rows, corrected in place.
	q [][]byte
	// corrected is the number of rows already corrected.
	corrected uint64
}

// NewSender returns a Sender configured with cfg.
func NewSender(cfg Config) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sender{extender: newExtender(roleSender, cfg)}, nil
}

// Configure (re)configures s, dropping any base material and session,
// and returns the number of base OTs required.
func (s *Sender) Configure(maliciousSecure bool, statSecParam, numOTs uint64, opts ...Option) (int, error) {
	cfg, err := Configure(maliciousSecure, statSecParam, numOTs, opts...)
	if err != nil {
		return 0, err
	}

	*s = Sender{extender: newExtender(roleSender, cfg)}
	return s.BaseOTCount(), nil
}

// SetBaseOTs installs the output of a base OT run in which s was the
// receiver. Any current session is discarded.
func (s *Sender) SetBaseOTs(m baseot.ReceiverMaterial) error {
	if !s.configured {
		return fmt.Errorf("%w: extender not configured", ErrInvalidConfiguration)
	}
	if n := m.Len(); n != s.BaseOTCount() {
		return fmt.Errorf("%w: got %d base OTs, need %d", ErrLengthMismatch, n, s.BaseOTCount())
	}

	s.blocks = append([]block.Block(nil), m.Blocks...)
	s.choices = m.Choices.Clone()
	s.s = s.choices.Bytes()
	s.sess = nil
	return nil
}

// Bootstrap runs the base OTs with p over rw using fresh random choice
// bits and installs the result.
func (s *Sender) Bootstrap(ctx context.Context, p baseot.Provider, rw io.ReadWriter) error {
	if !s.configured {
		return fmt.Errorf("%w: extender not configured", ErrInvalidConfiguration)
	}

	choices := bitvec.New(s.BaseOTCount())
	if err := choices.Randomize(rand.Reader); err != nil {
		return err
	}

	m, err := p.Receive(ctx, choices, rw)
	if err != nil {
		return fmt.Errorf("base OT: %w", err)
	}

	s.logger(ctx).V(1).Info("base OTs received", "count", m.Len())
	return s.SetBaseOTs(m)
}

// Init agrees on the session parameters with the peer, flips the code
// key and expands the base seeds into numOTs correlation rows. prng
// supplies the local share of the code key. Any previous session is
// discarded.
func (s *Sender) Init(ctx context.Context, numOTs uint64, prng io.Reader, rw io.ReadWriter) error {
	if err := s.checkInit(numOTs); err != nil {
		return err
	}
	if s.blocks == nil {
		return fmt.Errorf("%w: base OTs not set", ErrNotInitialized)
	}

	s.sess = nil
	s.epoch++
	logger := s.logger(ctx)
	logger.V(1).Info("init", "numOTs", numOTs)

	if err := exchangeParams(ctx, rw, s.params(numOTs)); err != nil {
		return initErr(err)
	}

	key, err := s.flipCoins(ctx, prng, rw)
	if err != nil {
		return initErr(err)
	}

	q, err := expand(s.cfg.PRG, s.blocks, s.epoch, numOTs)
	if err != nil {
		return initErr(err)
	}

	sess, err := newSession(key, s.cfg.BaseOTCount(), numOTs)
	if err != nil {
		return initErr(err)
	}
	s.sess = &senderSession{session: sess, q: q}

	logger.V(1).Info("session ready")
	return nil
}

// flipCoins commits to a local seed, receives the peer seed and opens
// the commitment. The code key is the xor of both seeds.
func (s *Sender) flipCoins(ctx context.Context, prng io.Reader, rw io.ReadWriter) (key block.Block, err error) {
	var seed block.Block
	if _, err := io.ReadFull(prng, seed[:]); err != nil {
		return key, err
	}

	commitment := crypto.Commit(seed)
	if err := writeFrame(rw, frameCommit, commitment[:]); err != nil {
		return key, err
	}

	b, err := readFrame(ctx, rw, frameSeed, block.Size)
	if err != nil {
		return key, err
	}
	peer, err := block.FromBytes(b)
	if err != nil {
		return key, err
	}

	if err := writeFrame(rw, frameOpen, seed[:]); err != nil {
		return key, err
	}

	return seed.Xor(peer), nil
}

func (s *Sender) session() (*senderSession, error) {
	if s.sess == nil {
		return nil, ErrNotInitialized
	}
	if s.sess.err != nil {
		return nil, s.sess.err
	}
	return s.sess, nil
}

// Corrected returns the number of indices whose correction has been
// received in the current session.
func (s *Sender) Corrected() uint64 {
	if s.sess == nil {
		return 0
	}
	return s.sess.corrected
}

// RecvCorrection reads the correction rows of the next count indices
// and applies them. It blocks until the batch arrives or ctx is done;
// in the latter case the session is failed since the stream position
// is lost.
func (s *Sender) RecvCorrection(ctx context.Context, rw io.ReadWriter, count uint64) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	if err := checkRange(sess.corrected, count, sess.numOTs); err != nil {
		return err
	}

	w := s.cfg.rowBytes()
	payload, err := readFrame(ctx, rw, frameCorrection, correctionHeaderLen+int(count)*w)
	if err != nil {
		return sess.fail(err)
	}

	start, n, rows := parseCorrection(payload)
	if start != sess.corrected || n != count {
		return sess.fail(fmt.Errorf("%w: correction batch [%d, %d+%d), expected [%d, %d+%d)",
			ErrProtocolDesync, start, start, n, sess.corrected, sess.corrected, count))
	}

	// q_i = (u_i & s) ^ q_i
	for k := uint64(0); k < count; k++ {
		u := rows[k*uint64(w) : (k+1)*uint64(w)]
		q := sess.q[start+k]
		util.AndXor(u, s.s, q)
		copy(q, u)
	}
	sess.corrected += count

	s.logger(ctx).V(2).Info("correction received", "start", start, "count", count)
	return nil
}

// EncodeInto writes the encoding of codeword at index i into dst. dst
// may have any non zero length. The correction covering i must have
// been received.
func (s *Sender) EncodeInto(i uint64, codeword block.Block, dst []byte) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	if len(dst) == 0 {
		return fmt.Errorf("%w: empty encoding buffer", ErrLengthMismatch)
	}
	if i >= sess.numOTs {
		return fmt.Errorf("%w: index %d with %d OTs", ErrOutOfRange, i, sess.numOTs)
	}
	if i >= sess.corrected {
		return fmt.Errorf("%w: index %d, %d corrected", ErrCorrectionNotYetReceived, i, sess.corrected)
	}

	// H(i, (C(x) & s) ^ q_i)
	sess.code.Encode(sess.buf, codeword)
	util.AndXor(sess.buf, s.s, sess.q[i])
	sess.hash.Sum(dst, i, sess.buf)
	return nil
}

// Encode returns the 128-bit encoding of codeword at index i.
func (s *Sender) Encode(i uint64, codeword block.Block) (b block.Block, err error) {
	err = s.EncodeInto(i, codeword, b[:])
	return
}

// EncodeBytes encodes an input of any length at index i. The input is
// first compressed to a codeword with a hash keyed by the session code
// key, exactly as the Receiver does.
func (s *Sender) EncodeBytes(i uint64, src []byte) (block.Block, error) {
	sess, err := s.session()
	if err != nil {
		return block.Block{}, err
	}
	return s.Encode(i, crypto.Compress(sess.key, src))
}

// Split derives a new Sender whose base seeds are independent of the
// seeds of s and of every other child. The child has the configuration
// of s but no session and must be initialized. The matching Receiver
// must be split the same number of times, in the same order.
func (s *Sender) Split() (*Sender, error) {
	if s.blocks == nil {
		return nil, fmt.Errorf("%w: base OTs not set", ErrInsufficientSplitCapacity)
	}

	x, ctr, err := s.child()
	if err != nil {
		return nil, err
	}

	blocks := make([]block.Block, len(s.blocks))
	for j := range blocks {
		blocks[j] = crypto.DeriveSeed(s.blocks[j], uint64(ctr))
	}

	return &Sender{
		extender: x,
		blocks:   blocks,
		choices:  s.choices.Clone(),
		s:        append([]byte(nil), s.s...),
	}, nil
}
