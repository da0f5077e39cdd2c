// Package runtime runs one framing session per configured link and
// collects their outcomes.
//
// Each link gets its own session, ingestion policy, sink, metrics collector
// and (optionally) Lode client. Links run concurrently and never share
// mutable state.
package runtime

import (
	"errors"
	"fmt"
	"io"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"

	"github.com/justapithecus/hbframe/adapter"
	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/rdh"
	"github.com/justapithecus/hbframe/session"
)

// Link is one readout link of the detector.
type Link struct {
	// Name is the partition key and the default output file stem.
	Name string
	// Identity is stamped into every header of the link.
	Identity rdh.Identity
}

// Policy names.
const (
	PolicyStrict    = "strict"
	PolicyBuffered  = "buffered"
	PolicyStreaming = "streaming"
	PolicyNoop      = "noop"
)

// PolicyConfig selects and sizes the ingestion policy of every link.
type PolicyConfig struct {
	Name             string
	Backpressure     policy.Backpressure
	MaxBufferHeaders int
	MaxBufferBytes   int64
	FlushCount       int
	FlushInterval    time.Duration
	QueueSize        int
}

// Output kinds.
const (
	OutputRaw  = "raw"
	OutputIPC  = "ipc"
	OutputLode = "lode"
	OutputNone = "none"
)

// OutputConfig selects where header pages go.
type OutputConfig struct {
	// Kind is raw, ipc, lode or none.
	Kind string
	// Dir receives one file per link for raw and ipc output.
	Dir string
	// Compression of raw and ipc files.
	Compression iox.Compression
	// Digest adds a HighwayHash digest of each raw file to the report.
	Digest bool
}

// StorageConfig enables Lode persistence of summaries, metrics and
// sidecar files. A nil Factory disables it.
type StorageConfig struct {
	Factory lodelibrary.StoreFactory
	Dataset string
	// Backend is recorded in metrics ("fs", "s3", "memory").
	Backend string
	// Sidecars stores report.json (and occupancy.html when Chart is set)
	// next to each session's partitions.
	Sidecars bool
	Chart    bool
}

// Config configures an Orchestrator.
type Config struct {
	Detector string
	Links    []Link
	// Session holds the grid and header parameters shared by all links.
	// Header.Identity is replaced per link.
	Session session.Config
	Source  Source
	Policy  PolicyConfig
	Output  OutputConfig
	Storage StorageConfig
	// Adapter, if set, receives one event per finished link.
	Adapter adapter.Adapter
	// Parallel bounds concurrently running links. Zero runs all at once.
	Parallel int

	// LogLevel is debug, info, warn or error.
	LogLevel string
	// LogOutput overrides stderr.
	LogOutput io.Writer

	// Now and NewSessionID are injectable for tests.
	Now          func() time.Time
	NewSessionID func() string
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid runtime config")

// Validate checks the run configuration.
func (c *Config) Validate() error {
	if len(c.Links) == 0 {
		return fmt.Errorf("%w: at least one link is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Links))
	for _, l := range c.Links {
		if l.Name == "" {
			return fmt.Errorf("%w: link name must not be empty", ErrInvalidConfig)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: duplicate link %q", ErrInvalidConfig, l.Name)
		}
		seen[l.Name] = true
	}
	if c.Source == nil {
		return fmt.Errorf("%w: source is required", ErrInvalidConfig)
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}

	switch c.Policy.Name {
	case "", PolicyStrict, PolicyBuffered, PolicyStreaming, PolicyNoop:
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy.Name)
	}
	if _, err := policy.ParseBackpressure(string(c.Policy.Backpressure)); err != nil {
		return err
	}

	switch c.Output.Kind {
	case "", OutputNone:
	case OutputRaw, OutputIPC:
		if c.Output.Dir == "" {
			return fmt.Errorf("%w: %s output requires a directory", ErrInvalidConfig, c.Output.Kind)
		}
	case OutputLode:
		if c.Storage.Factory == nil {
			return fmt.Errorf("%w: lode output requires storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown output %q", ErrInvalidConfig, c.Output.Kind)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("%w: parallel must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) policyName() string {
	if c.Policy.Name == "" {
		return PolicyStrict
	}
	return c.Policy.Name
}
