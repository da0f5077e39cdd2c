// Package grid maps accelerator clock coordinates (orbit, bunch crossing)
// onto the heartbeat-frame and time-frame hierarchy.
//
// All operations are pure integer arithmetic on an immutable Grid.
package grid

import (
	"errors"
	"fmt"

	"github.com/justapithecus/hbframe/types"
)

// Reference readout constants.
const (
	DefaultBunchCrossings = 3564
	DefaultHBFPerTF       = 256
	DefaultOrbitsPerHBF   = 1
)

// FrameID is a heartbeat frame identifier counted from the grid's first orbit.
type FrameID int64

// Config parameterizes a Grid.
type Config struct {
	// FirstOrbit is the epoch orbit; frame 0 starts here.
	FirstOrbit uint32 `yaml:"first_orbit" json:"first_orbit"`
	// OrbitsPerHBF is the heartbeat period in orbits.
	OrbitsPerHBF uint32 `yaml:"orbits_per_hbf" json:"orbits_per_hbf"`
	// HBFPerTF is the number of heartbeat frames per time frame.
	HBFPerTF uint32 `yaml:"hbf_per_tf" json:"hbf_per_tf"`
	// BunchCrossings is the number of bunch crossings per orbit.
	BunchCrossings uint16 `yaml:"bunch_crossings" json:"bunch_crossings"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		OrbitsPerHBF:   DefaultOrbitsPerHBF,
		HBFPerTF:       DefaultHBFPerTF,
		BunchCrossings: DefaultBunchCrossings,
	}
}

// ErrInvalidConfig is returned by Validate for unusable grid parameters.
var ErrInvalidConfig = errors.New("invalid grid config")

// Validate checks that every period is non-zero.
func (c Config) Validate() error {
	switch {
	case c.OrbitsPerHBF == 0:
		return fmt.Errorf("%w: orbits_per_hbf must be positive", ErrInvalidConfig)
	case c.HBFPerTF == 0:
		return fmt.Errorf("%w: hbf_per_tf must be positive", ErrInvalidConfig)
	case c.BunchCrossings == 0:
		return fmt.Errorf("%w: bunch_crossings must be positive", ErrInvalidConfig)
	}
	return nil
}

// Grid is an immutable clock grid. Safe for concurrent use.
type Grid struct {
	cfg Config
}

// New validates cfg and returns a Grid.
func New(cfg Config) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Grid{cfg: cfg}, nil
}

// MustNew is like New but panics on invalid config. Intended for tests and
// package-level defaults.
func MustNew(cfg Config) *Grid {
	g, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return g
}

// Config returns the grid parameters.
func (g *Grid) Config() Config {
	return g.cfg
}

// MaxBC is the largest valid bunch crossing (inclusive).
func (g *Grid) MaxBC() uint16 {
	return g.cfg.BunchCrossings - 1
}

// Check returns an *OutOfRangeError if ir cannot be placed on the grid.
func (g *Grid) Check(ir types.InteractionRecord) error {
	if ir.BC > g.MaxBC() {
		return &OutOfRangeError{Record: ir, Reason: ReasonBCBound, MaxBC: g.MaxBC()}
	}
	if ir.Orbit < g.cfg.FirstOrbit {
		return &OutOfRangeError{Record: ir, Reason: ReasonBeforeEpoch, FirstOrbit: g.cfg.FirstOrbit}
	}
	return nil
}

// HBF returns the heartbeat frame containing ir.
func (g *Grid) HBF(ir types.InteractionRecord) (FrameID, error) {
	if err := g.Check(ir); err != nil {
		return 0, err
	}
	return FrameID((ir.Orbit - g.cfg.FirstOrbit) / g.cfg.OrbitsPerHBF), nil
}

// TF returns the time frame containing hbf.
func (g *Grid) TF(hbf FrameID) int64 {
	return int64(hbf) / int64(g.cfg.HBFPerTF)
}

// PositionInTF returns the index of hbf inside its time frame.
func (g *Grid) PositionInTF(hbf FrameID) int64 {
	return int64(hbf) % int64(g.cfg.HBFPerTF)
}

// TFAndPosition returns TF(hbf) and PositionInTF(hbf).
func (g *Grid) TFAndPosition(hbf FrameID) (tf, pos int64) {
	return g.TF(hbf), g.PositionInTF(hbf)
}

// IsTFStart reports whether hbf is the first heartbeat frame of its time frame.
func (g *Grid) IsTFStart(hbf FrameID) bool {
	return g.PositionInTF(hbf) == 0
}

// FrameIR returns the canonical (orbit, bc) of the first bunch crossing of hbf.
func (g *Grid) FrameIR(hbf FrameID) types.InteractionRecord {
	orbit := uint64(g.cfg.FirstOrbit) + uint64(hbf)*uint64(g.cfg.OrbitsPerHBF)
	return types.InteractionRecord{Orbit: uint32(orbit), BC: 0}
}

// Classify returns the frame, time frame and position of ir in one call.
func (g *Grid) Classify(ir types.InteractionRecord) (hbf FrameID, tf, pos int64, err error) {
	hbf, err = g.HBF(ir)
	if err != nil {
		return 0, 0, 0, err
	}
	tf, pos = g.TFAndPosition(hbf)
	return hbf, tf, pos, nil
}
