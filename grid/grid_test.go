package grid

import (
	"errors"
	"testing"

	"github.com/justapithecus/hbframe/types"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero orbits per hbf", func(c *Config) { c.OrbitsPerHBF = 0 }, true},
		{"zero hbf per tf", func(c *Config) { c.HBFPerTF = 0 }, true},
		{"zero bunch crossings", func(c *Config) { c.BunchCrossings = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestGrid_HBF(t *testing.T) {
	g := MustNew(Config{FirstOrbit: 100, OrbitsPerHBF: 4, HBFPerTF: 8, BunchCrossings: 3564})

	tests := []struct {
		ir   types.InteractionRecord
		want FrameID
	}{
		{types.InteractionRecord{Orbit: 100, BC: 0}, 0},
		{types.InteractionRecord{Orbit: 103, BC: 3563}, 0},
		{types.InteractionRecord{Orbit: 104, BC: 0}, 1},
		{types.InteractionRecord{Orbit: 135, BC: 17}, 8},
	}
	for _, tt := range tests {
		got, err := g.HBF(tt.ir)
		if err != nil {
			t.Fatalf("HBF(%s) error: %v", tt.ir, err)
		}
		if got != tt.want {
			t.Errorf("HBF(%s) = %d, want %d", tt.ir, got, tt.want)
		}
	}
}

func TestGrid_TFAndPosition(t *testing.T) {
	g := MustNew(DefaultConfig())

	tests := []struct {
		hbf     FrameID
		tf, pos int64
		tfStart bool
	}{
		{0, 0, 0, true},
		{1, 0, 1, false},
		{255, 0, 255, false},
		{256, 1, 0, true},
		{513, 2, 1, false},
	}
	for _, tt := range tests {
		tf, pos := g.TFAndPosition(tt.hbf)
		if tf != tt.tf || pos != tt.pos {
			t.Errorf("TFAndPosition(%d) = (%d, %d), want (%d, %d)", tt.hbf, tf, pos, tt.tf, tt.pos)
		}
		if got := g.IsTFStart(tt.hbf); got != tt.tfStart {
			t.Errorf("IsTFStart(%d) = %v, want %v", tt.hbf, got, tt.tfStart)
		}
	}
}

func TestGrid_FrameIRRoundTrip(t *testing.T) {
	g := MustNew(Config{FirstOrbit: 7, OrbitsPerHBF: 3, HBFPerTF: 4, BunchCrossings: 100})

	for hbf := FrameID(0); hbf < 50; hbf++ {
		ir := g.FrameIR(hbf)
		if ir.BC != 0 {
			t.Fatalf("FrameIR(%d).BC = %d, want 0", hbf, ir.BC)
		}
		back, err := g.HBF(ir)
		if err != nil {
			t.Fatalf("HBF(FrameIR(%d)) error: %v", hbf, err)
		}
		if back != hbf {
			t.Errorf("HBF(FrameIR(%d)) = %d", hbf, back)
		}
	}
}

func TestGrid_OutOfRange(t *testing.T) {
	g := MustNew(Config{FirstOrbit: 10, OrbitsPerHBF: 1, HBFPerTF: 256, BunchCrossings: 3564})

	tests := []struct {
		name   string
		ir     types.InteractionRecord
		reason OutOfRangeReason
	}{
		{"bc at bound plus one", types.InteractionRecord{Orbit: 10, BC: 3564}, ReasonBCBound},
		{"bc far above", types.InteractionRecord{Orbit: 11, BC: 65535}, ReasonBCBound},
		{"before epoch", types.InteractionRecord{Orbit: 9, BC: 0}, ReasonBeforeEpoch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.HBF(tt.ir)
			if !IsOutOfRange(err) {
				t.Fatalf("HBF() error = %v, want out of range", err)
			}
			var oor *OutOfRangeError
			if !errors.As(err, &oor) {
				t.Fatalf("error is %T, want *OutOfRangeError", err)
			}
			if oor.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", oor.Reason, tt.reason)
			}
			if oor.Record != tt.ir {
				t.Errorf("Record = %v, want %v", oor.Record, tt.ir)
			}
		})
	}

	if err := g.Check(types.InteractionRecord{Orbit: 10, BC: g.MaxBC()}); err != nil {
		t.Errorf("Check(MaxBC) error = %v, want nil", err)
	}
}
