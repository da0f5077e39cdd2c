// Package sampler produces interaction record streams: a seeded Poisson
// collision-time generator, and readers for recorded streams in CSV or
// ipc form.
package sampler

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/justapithecus/hbframe/types"
)

// OrbitFrequency is the LHC revolution frequency in Hz.
const OrbitFrequency = 11245.5

// Defaults of the reference generator.
const (
	DefaultRate       = 50000.0
	DefaultMinPayload = 16
	DefaultMaxPayload = 8192 - 64
)

// ErrInvalidConfig is returned for unusable generator parameters.
var ErrInvalidConfig = errors.New("invalid sampler config")

// PoissonConfig parameterizes the collision-time generator.
type PoissonConfig struct {
	// Rate is the mean interaction rate in Hz.
	Rate float64 `yaml:"rate" json:"rate"`
	// FilledEvery marks every Nth bunch crossing as filled (1 = all).
	FilledEvery uint16 `yaml:"filled_every" json:"filled_every"`
	// BunchCrossings is the number of bunch crossings per orbit.
	BunchCrossings uint16 `yaml:"bunch_crossings" json:"bunch_crossings"`
	// FirstOrbit is the orbit the generator starts at.
	FirstOrbit uint32 `yaml:"first_orbit" json:"first_orbit"`
	// MinPayload and MaxPayload bound the uniform per-record payload size.
	MinPayload uint32 `yaml:"min_payload" json:"min_payload"`
	MaxPayload uint32 `yaml:"max_payload" json:"max_payload"`
	// Seed makes the stream reproducible.
	Seed uint64 `yaml:"seed" json:"seed"`
}

// DefaultPoissonConfig returns a 50 kHz generator on a fully filled orbit.
func DefaultPoissonConfig() PoissonConfig {
	return PoissonConfig{
		Rate:           DefaultRate,
		FilledEvery:    1,
		BunchCrossings: 3564,
		MinPayload:     DefaultMinPayload,
		MaxPayload:     DefaultMaxPayload,
		Seed:           1,
	}
}

// Validate checks rate, filling and payload bounds.
func (c PoissonConfig) Validate() error {
	switch {
	case c.Rate <= 0:
		return fmt.Errorf("%w: rate %g must be positive", ErrInvalidConfig, c.Rate)
	case c.BunchCrossings == 0:
		return fmt.Errorf("%w: bunch_crossings must be positive", ErrInvalidConfig)
	case c.FilledEvery == 0 || c.FilledEvery > c.BunchCrossings:
		return fmt.Errorf("%w: filled_every %d must be in [1, %d]", ErrInvalidConfig, c.FilledEvery, c.BunchCrossings)
	case c.MaxPayload < c.MinPayload:
		return fmt.Errorf("%w: max_payload %d below min_payload %d", ErrInvalidConfig, c.MaxPayload, c.MinPayload)
	}
	return nil
}

// Filled returns the number of filled bunch crossings per orbit.
func (c PoissonConfig) Filled() int {
	return (int(c.BunchCrossings) + int(c.FilledEvery) - 1) / int(c.FilledEvery)
}

// Mu returns the mean number of interactions per filled bunch crossing.
func (c PoissonConfig) Mu() float64 {
	return c.Rate / (OrbitFrequency * float64(c.Filled()))
}

// Poisson generates collision times by drawing the number of interactions
// in every filled bunch crossing from a Poisson distribution.
type Poisson struct {
	cfg PoissonConfig
}

// NewPoisson validates cfg and returns a generator.
func NewPoisson(cfg PoissonConfig) (*Poisson, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Poisson{cfg: cfg}, nil
}

// Config returns the generator parameters.
func (p *Poisson) Config() PoissonConfig {
	return p.cfg
}

// Records yields n records in time order. The same seed always yields the
// same stream; every call starts from the beginning.
func (p *Poisson) Records(n int) iter.Seq[types.InteractionRecord] {
	return func(yield func(types.InteractionRecord) bool) {
		src := rand.NewPCG(p.cfg.Seed, p.cfg.Seed^0x9e3779b97f4a7c15)
		counts := distuv.Poisson{Lambda: p.cfg.Mu(), Src: src}
		sizes := distuv.Uniform{
			Min: float64(p.cfg.MinPayload),
			Max: float64(p.cfg.MaxPayload) + 1,
			Src: src,
		}

		emitted := 0
		for orbit := p.cfg.FirstOrbit; emitted < n; orbit++ {
			for bc := uint16(0); bc < p.cfg.BunchCrossings; bc += p.cfg.FilledEvery {
				k := int(counts.Rand())
				for range k {
					size := min(uint32(sizes.Rand()), p.cfg.MaxPayload)
					if !yield(types.InteractionRecord{Orbit: orbit, BC: bc, PayloadSize: size}) {
						return
					}
					emitted++
					if emitted == n {
						return
					}
				}
				if bc > p.cfg.BunchCrossings-p.cfg.FilledEvery {
					break
				}
			}
		}
	}
}
