package kkrt

import (
	"fmt"

	"github.com/optable/kkrt/internal/crypto"
)

const (
	// CompSecParam is the computational security parameter in bits.
	CompSecParam = 128
	// MaxStatSecParam is the largest statistical security parameter
	// accepted by Configure.
	MaxStatSecParam = 128
	// DefaultMaxSplits bounds the number of children one extender can
	// derive with Split.
	DefaultMaxSplits = 1 << 16
)

// PRGMode selects the extendable output function that stretches base
// OT seeds into correlation columns.
type PRGMode = crypto.PRGMode

const (
	PRGBlake3  = crypto.Blake3
	PRGBlake2b = crypto.Blake2b
)

// Config holds the negotiated protocol parameters. Both roles must be
// configured identically, which Init verifies on the wire.
type Config struct {
	MaliciousSecure bool
	StatSecParam    uint64
	NumOTs          uint64
	PRG             PRGMode
	MaxSplits       uint32
}

// Option tunes a Config.
type Option func(*Config)

// WithPRG sets the column expansion function.
func WithPRG(mode PRGMode) Option {
	return func(c *Config) {
		c.PRG = mode
	}
}

// WithMaxSplits sets how many children Split may derive.
func WithMaxSplits(n uint32) Option {
	return func(c *Config) {
		c.MaxSplits = n
	}
}

// Configure validates the parameters and returns the resulting Config.
func Configure(maliciousSecure bool, statSecParam, numOTs uint64, opts ...Option) (Config, error) {
	cfg := Config{
		MaliciousSecure: maliciousSecure,
		StatSecParam:    statSecParam,
		NumOTs:          numOTs,
		PRG:             PRGBlake3,
		MaxSplits:       DefaultMaxSplits,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports whether c describes a supported configuration.
func (c Config) Validate() error {
	switch {
	case c.MaliciousSecure:
		return fmt.Errorf("%w: malicious security is not supported", ErrInvalidConfiguration)
	case c.StatSecParam == 0:
		return fmt.Errorf("%w: statistical security parameter must be positive", ErrInvalidConfiguration)
	case c.StatSecParam > MaxStatSecParam:
		return fmt.Errorf("%w: statistical security parameter %d above %d", ErrInvalidConfiguration, c.StatSecParam, MaxStatSecParam)
	case c.NumOTs == 0:
		return fmt.Errorf("%w: number of OTs must be positive", ErrInvalidConfiguration)
	case c.PRG != PRGBlake3 && c.PRG != PRGBlake2b:
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, crypto.ErrUnknownPRG)
	}
	return nil
}

// BaseOTCount returns the number of base OTs, which is also the bit
// width of the pseudorandom code. It only depends on the statistical
// security parameter: 3*128 + 2*statSecParam rounded up to a multiple
// of 128, so 512 for statSecParam = 40.
func (c Config) BaseOTCount() int {
	n := 3*CompSecParam + 2*c.StatSecParam
	return int((n + CompSecParam - 1) / CompSecParam * CompSecParam)
}

// rowBytes is the byte length of one correlation row.
func (c Config) rowBytes() int {
	return c.BaseOTCount() / 8
}
