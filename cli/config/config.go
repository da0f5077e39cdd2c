package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/hbframe/frames"
	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/rdh"
	"github.com/justapithecus/hbframe/sampler"
	"github.com/justapithecus/hbframe/session"
)

// Config represents an hbframe.yaml configuration file.
// Values act as defaults for hbframe run flags; CLI flags always override
// config values. Grid, header and generator sections start from the
// reference defaults, so a file only needs the fields it changes.
type Config struct {
	Detector      string               `yaml:"detector"`
	Links         []LinkConfig         `yaml:"links"`
	Grid          grid.Config          `yaml:"grid"`
	Header        rdh.Config           `yaml:"header"`
	PayloadPolicy frames.PayloadPolicy `yaml:"payload_policy"`
	Source        SourceConfig         `yaml:"source"`
	Policy        PolicyConfig         `yaml:"policy"`
	Storage       StorageConfig        `yaml:"storage"`
	Output        OutputConfig         `yaml:"output"`
	Adapter       AdapterConfig        `yaml:"adapter"`
	Parallel      int                  `yaml:"parallel"`
	LogLevel      string               `yaml:"log_level"`
	Report        string               `yaml:"report"`
}

// LinkConfig names one link and the identity stamped into its headers.
type LinkConfig struct {
	Name         string `yaml:"name"`
	rdh.Identity `yaml:",inline"`
}

// SourceConfig selects where collision times come from.
type SourceConfig struct {
	// Kind is poisson or file.
	Kind string `yaml:"kind"`
	// Path of the input file; may contain {link}.
	Path string `yaml:"path"`
	// Format is csv or ipc; empty detects from the extension.
	Format string `yaml:"format"`
	// Count is the number of generated records per link.
	Count   int                   `yaml:"count"`
	Poisson sampler.PoissonConfig `yaml:"poisson"`
}

// PolicyConfig holds ingestion policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	Backpressure  string   `yaml:"backpressure"`
	BufferHeaders int      `yaml:"buffer_headers"`
	BufferBytes   int64    `yaml:"buffer_bytes"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
	QueueSize     int      `yaml:"queue_size"`
}

// StorageConfig holds Lode storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	// Sidecars stores report.json (and the chart) next to each session.
	Sidecars bool `yaml:"sidecars"`
	Chart    bool `yaml:"chart"`
}

// OutputConfig holds local output defaults from the config file.
type OutputConfig struct {
	Kind        string `yaml:"kind"`
	Dir         string `yaml:"dir"`
	Compression string `yaml:"compression"`
	Digest      bool   `yaml:"digest"`
	// Chart is a local path for the occupancy chart of all links.
	Chart string `yaml:"chart"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Channel string `yaml:"channel,omitempty"`
	PerLink bool   `yaml:"per_link,omitempty"`
	// Stream mirrors redis events into a stream capped at StreamMaxLen.
	Stream       string            `yaml:"stream,omitempty"`
	StreamMaxLen int64             `yaml:"stream_max_len,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Timeout      Duration          `yaml:"timeout,omitempty"`
	Retries      *int              `yaml:"retries,omitempty"`
	Secret       string            `yaml:"secret,omitempty"`
	Issuer       string            `yaml:"issuer,omitempty"`
	TokenTTL     Duration          `yaml:"token_ttl,omitempty"`
}

// Default returns a config holding the reference grid, header and
// generator parameters.
func Default() Config {
	sc := session.DefaultConfig()
	return Config{
		Grid:          sc.Grid,
		Header:        sc.Header,
		PayloadPolicy: sc.PayloadPolicy,
		Source:        SourceConfig{Poisson: sampler.DefaultPoissonConfig()},
	}
}

// Session returns the session parameters shared by all links.
func (c *Config) Session() session.Config {
	return session.Config{
		Grid:          c.Grid,
		Header:        c.Header,
		PayloadPolicy: c.PayloadPolicy,
	}
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
