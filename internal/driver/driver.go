// Package driver runs the KKRT demonstration: both roles in one
// process, connected by a loopback TCP channel, exercised with batched
// and singleton corrections before and after a split.
package driver

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/optable/kkrt/internal/audit"
	"github.com/optable/kkrt/internal/hash"
	"github.com/optable/kkrt/internal/transport"
	"github.com/optable/kkrt/pkg/baseot"
	"github.com/optable/kkrt/pkg/block"
	"github.com/optable/kkrt/pkg/kkrt"
	"github.com/optable/kkrt/pkg/log"
	"github.com/optable/kkrt/pkg/prng"
)

var (
	// ErrEncodingMismatch reports a Sender encoding that differs from
	// the Receiver encoding of the same codeword.
	ErrEncodingMismatch = fmt.Errorf("%w: encodings of the same codeword differ", kkrt.ErrSecurityViolation)
	// ErrFalseAgreement reports a Sender encoding of another codeword
	// that matches the Receiver encoding.
	ErrFalseAgreement = fmt.Errorf("%w: encodings of different codewords agree", kkrt.ErrSecurityViolation)
	// ErrRepeatedEncoding reports a Receiver encoding observed twice.
	ErrRepeatedEncoding = fmt.Errorf("%w: %w", kkrt.ErrSecurityViolation, audit.ErrRepeatedEncoding)
)

// BaseOT selects how the base OTs are obtained.
type BaseOT int

const (
	// BaseOTFake samples both parties' material from the first
	// generator.
	BaseOTFake BaseOT = iota
	// BaseOTSimplest runs the simplest OT over the channel.
	BaseOTSimplest
)

func (b BaseOT) String() string {
	switch b {
	case BaseOTFake:
		return "fake"
	case BaseOTSimplest:
		return "simplest"
	default:
		return fmt.Sprintf("BaseOT(%d)", int(b))
	}
}

// Params describes one demonstration run.
type Params struct {
	MaliciousSecure bool
	StatSecParam    uint64
	NumOTs          uint64
	// Step is the correction batch size before the split; the split
	// children always use singleton batches.
	Step uint64
	// Passes is the number of Init rounds per extender pair.
	Passes int
	Seed0  block.Block
	Seed1  block.Block
	BaseOT BaseOT
	Group  baseot.Group
	PRG    kkrt.PRGMode
}

// DefaultParams returns the parameters of the reference run.
func DefaultParams() Params {
	return Params{
		StatSecParam: 40,
		NumOTs:       128,
		Step:         10,
		Passes:       2,
		Seed0:        block.FromUint64s(4253465, 3434565),
		Seed1:        block.FromUint64s(42532335, 334565),
		BaseOT:       BaseOTFake,
		Group:        baseot.GroupR255,
		PRG:          kkrt.PRGBlake3,
	}
}

// Report summarizes a successful run.
type Report struct {
	BaseCount int
	// Agreements counts Sender encodings that matched the Receiver.
	Agreements int
	// Divergences counts Sender encodings of other codewords that
	// differed from the Receiver.
	Divergences int
	// Audited counts distinct Receiver encodings.
	Audited  int
	Duration time.Duration
}

// endpoints is the pair of channels of one run, the sender end and
// the receiver end.
type endpoints struct {
	send, recv io.ReadWriter
}

// Run executes the demonstration described by p. Any encoding
// disagreement aborts the run with an error wrapping
// kkrt.ErrSecurityViolation; protocol misuse surfaces as the kkrt
// error that caused it.
func Run(ctx context.Context, p Params) (Report, error) {
	logger := log.FromContext(ctx, "driver")
	start := time.Now()
	var report Report

	prng0 := prng.New(p.Seed0)
	prng1 := prng.New(p.Seed1)

	var sender kkrt.Sender
	var recv kkrt.Receiver
	baseCount, err := sender.Configure(p.MaliciousSecure, p.StatSecParam, p.NumOTs, kkrt.WithPRG(p.PRG))
	if err != nil {
		return report, err
	}
	if _, err := recv.Configure(p.MaliciousSecure, p.StatSecParam, p.NumOTs, kkrt.WithPRG(p.PRG)); err != nil {
		return report, err
	}
	report.BaseCount = baseCount
	logger.V(1).Info("configured", "baseCount", baseCount, "numOTs", p.NumOTs)

	// the sender end listens, the receiver end dials
	sendConn, recvConn, err := transport.Loopback(ctx)
	if err != nil {
		return report, err
	}
	defer sendConn.Close()
	defer recvConn.Close()
	chl := endpoints{send: sendConn, recv: recvConn}

	if err := setBaseOTs(ctx, p, prng0, &sender, &recv, chl); err != nil {
		return report, err
	}

	auditor, err := audit.New(uint(4*p.Passes)*uint(p.NumOTs), hash.Highway)
	if err != nil {
		return report, err
	}
	ex := exerciser{chl: chl, prng: prng0, auditor: auditor, report: &report}

	for j := 0; j < p.Passes; j++ {
		if err := initBoth(ctx, &sender, &recv, p.NumOTs, prng0, prng1, chl); err != nil {
			return report, err
		}
		if err := ex.run(ctx, &sender, &recv, p.NumOTs, p.Step); err != nil {
			return report, fmt.Errorf("pass %d: %w", j, err)
		}
		logger.V(1).Info("pass done", "pass", j, "step", p.Step)
	}

	// split and run the same checks with singleton batches
	recv2, err := recv.Split()
	if err != nil {
		return report, err
	}
	send2, err := sender.Split()
	if err != nil {
		return report, err
	}

	for j := 0; j < p.Passes; j++ {
		if err := initBoth(ctx, send2, recv2, p.NumOTs, prng0, prng1, chl); err != nil {
			return report, err
		}
		if err := ex.run(ctx, send2, recv2, p.NumOTs, 1); err != nil {
			return report, fmt.Errorf("split pass %d: %w", j, err)
		}
		logger.V(1).Info("split pass done", "pass", j)
	}

	report.Audited = auditor.Len()
	report.Duration = time.Since(start)
	return report, nil
}

func setBaseOTs(ctx context.Context, p Params, prng0 io.Reader, sender *kkrt.Sender, recv *kkrt.Receiver, chl endpoints) error {
	switch p.BaseOT {
	case BaseOTFake:
		sm, rm, err := baseot.Fake(prng0, sender.BaseOTCount())
		if err != nil {
			return err
		}
		if err := sender.SetBaseOTs(rm); err != nil {
			return err
		}
		return recv.SetBaseOTs(sm)

	case BaseOTSimplest:
		ot, err := baseot.NewSimplest(p.Group)
		if err != nil {
			return err
		}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return sender.Bootstrap(ctx, ot, chl.send)
		})
		g.Go(func() error {
			return recv.Bootstrap(ctx, ot, chl.recv)
		})
		return g.Wait()

	default:
		return fmt.Errorf("unknown base OT %v", p.BaseOT)
	}
}

// initBoth runs both Inits concurrently. A failure on one side cancels
// the other.
func initBoth(ctx context.Context, sender *kkrt.Sender, recv *kkrt.Receiver, numOTs uint64, prng0, prng1 io.Reader, chl endpoints) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sender.Init(ctx, numOTs, prng0, chl.send)
	})
	g.Go(func() error {
		return recv.Init(ctx, numOTs, prng1, chl.recv)
	})
	return g.Wait()
}

// exerciser drives the encode and correction loop of one pass.
type exerciser struct {
	chl     endpoints
	prng    *prng.PRNG
	auditor *audit.Auditor
	report  *Report
}

func (e exerciser) run(ctx context.Context, sender *kkrt.Sender, recv *kkrt.Receiver, numOTs, step uint64) error {
	logger := log.FromContext(ctx, "driver")
	inputs := make([]block.Block, step)
	encodings := make([]block.Block, step)

	for i := uint64(0); i < numOTs; i += step {
		e.prng.Blocks(inputs)

		ss := step
		if numOTs-i < ss {
			ss = numOTs - i
		}

		// the receiver encodes strictly before sending the corrections
		for k := uint64(0); k < ss; k++ {
			var err error
			if encodings[k], err = recv.Encode(i+k, inputs[k]); err != nil {
				return err
			}
		}

		if err := recv.SendCorrection(ctx, e.chl.recv, ss); err != nil {
			return err
		}
		if err := sender.RecvCorrection(ctx, e.chl.send, ss); err != nil {
			return err
		}

		for k := uint64(0); k < ss; k++ {
			enc, err := sender.Encode(i+k, inputs[k])
			if err != nil {
				return err
			}
			if !enc.Equal(encodings[k]) {
				return fmt.Errorf("%w: index %d", ErrEncodingMismatch, i+k)
			}
			e.report.Agreements++

			if err := e.auditor.Observe(encodings[k]); err != nil {
				return fmt.Errorf("%w: index %d", ErrRepeatedEncoding, i+k)
			}

			inputs[k] = e.prng.Block()
			if enc, err = sender.Encode(i+k, inputs[k]); err != nil {
				return err
			}
			if enc.Equal(encodings[k]) {
				return fmt.Errorf("%w: index %d", ErrFalseAgreement, i+k)
			}
			e.report.Divergences++
		}

		logger.V(2).Info("batch checked", "start", i, "count", ss)
	}
	return nil
}
