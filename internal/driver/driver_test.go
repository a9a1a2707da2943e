package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/optable/kkrt/pkg/baseot"
	"github.com/optable/kkrt/pkg/kkrt"
)

func TestRun(t *testing.T) {
	p := DefaultParams()
	report, err := Run(context.Background(), p)
	require.NoError(t, err)

	// two passes before and two after the split
	checks := 2 * p.Passes * int(p.NumOTs)
	require.Equal(t, 512, report.BaseCount)
	require.Equal(t, checks, report.Agreements)
	require.Equal(t, checks, report.Divergences)
	require.Equal(t, checks, report.Audited)
}

func TestRunSimplest(t *testing.T) {
	for _, g := range []baseot.Group{baseot.GroupR255, baseot.GroupGR} {
		t.Run(g.String(), func(t *testing.T) {
			p := DefaultParams()
			p.BaseOT = BaseOTSimplest
			p.Group = g
			p.NumOTs = 40
			p.Passes = 1

			report, err := Run(context.Background(), p)
			require.NoError(t, err)
			require.Equal(t, 2*40, report.Agreements)
		})
	}
}

func TestRunVariants(t *testing.T) {
	p := DefaultParams()
	p.PRG = kkrt.PRGBlake2b
	p.StatSecParam = 80
	p.NumOTs = 1000
	p.Step = 333
	p.Passes = 1

	report, err := Run(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, 640, report.BaseCount)
	require.Equal(t, 2000, report.Audited)
}

func TestRunInvalid(t *testing.T) {
	p := DefaultParams()
	p.MaliciousSecure = true
	_, err := Run(context.Background(), p)
	require.ErrorIs(t, err, kkrt.ErrInvalidConfiguration)

	p = DefaultParams()
	p.NumOTs = 0
	_, err = Run(context.Background(), p)
	require.ErrorIs(t, err, kkrt.ErrInvalidConfiguration)

	p = DefaultParams()
	p.BaseOT = BaseOT(7)
	_, err = Run(context.Background(), p)
	require.Error(t, err)
}

func TestErrors(t *testing.T) {
	for _, err := range []error{ErrEncodingMismatch, ErrFalseAgreement, ErrRepeatedEncoding} {
		require.ErrorIs(t, err, kkrt.ErrSecurityViolation)
	}
}
