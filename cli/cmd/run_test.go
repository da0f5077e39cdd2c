package cmd

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	hbconfig "github.com/justapithecus/hbframe/cli/config"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/runtime"
	"github.com/justapithecus/hbframe/types"
)

func TestValidatePolicyConfig(t *testing.T) {
	tests := []struct {
		name        string
		pc          runtime.PolicyConfig
		wantErr     bool
		errContains string
	}{
		{
			name: "strict policy valid",
			pc:   runtime.PolicyConfig{Name: runtime.PolicyStrict},
		},
		{
			name: "strict ignores buffer flags",
			pc:   runtime.PolicyConfig{Name: runtime.PolicyStrict, MaxBufferHeaders: 100},
		},
		{
			name: "noop valid",
			pc:   runtime.PolicyConfig{Name: runtime.PolicyNoop},
		},
		{
			name: "buffered defaults valid",
			pc:   runtime.PolicyConfig{Name: runtime.PolicyBuffered},
		},
		{
			name:        "buffered negative limit",
			pc:          runtime.PolicyConfig{Name: runtime.PolicyBuffered, MaxBufferBytes: -1},
			wantErr:     true,
			errContains: "buffer limits must be >= 0",
		},
		{
			name: "streaming with drop",
			pc:   runtime.PolicyConfig{Name: runtime.PolicyStreaming, FlushCount: 10, Backpressure: policy.BackpressureDrop},
		},
		{
			name:        "streaming negative interval",
			pc:          runtime.PolicyConfig{Name: runtime.PolicyStreaming, FlushInterval: -time.Second},
			wantErr:     true,
			errContains: "--flush-interval",
		},
		{
			name:        "unknown policy",
			pc:          runtime.PolicyConfig{Name: "eventual"},
			wantErr:     true,
			errContains: "invalid --policy",
		},
		{
			name:        "unknown backpressure",
			pc:          runtime.PolicyConfig{Name: runtime.PolicyBuffered, Backpressure: "spill"},
			wantErr:     true,
			errContains: "invalid --backpressure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePolicyConfig(tt.pc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validatePolicyConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err, tt.errContains)
			}
		})
	}
}

func TestValidateStorageChoice(t *testing.T) {
	tests := []struct {
		name        string
		choice      storageChoice
		wantErr     bool
		errContains string
	}{
		{name: "disabled", choice: storageChoice{}},
		{name: "fs with path", choice: storageChoice{backend: "fs", path: "/tmp/data"}},
		{name: "s3 with path", choice: storageChoice{backend: "s3", path: "bucket/prefix"}},
		{name: "memory without path", choice: storageChoice{backend: "memory"}},
		{
			name:        "fs without path",
			choice:      storageChoice{backend: "fs"},
			wantErr:     true,
			errContains: "--storage-path is required for the fs backend",
		},
		{
			name:        "path without backend",
			choice:      storageChoice{path: "/tmp/data"},
			wantErr:     true,
			errContains: "--storage-backend is required",
		},
		{
			name:        "unknown backend",
			choice:      storageChoice{backend: "gcs", path: "x"},
			wantErr:     true,
			errContains: "must be fs, s3 or memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStorageChoice(tt.choice)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateStorageChoice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err, tt.errContains)
			}
		})
	}
}

func TestParseLinkSpec(t *testing.T) {
	tests := []struct {
		spec    string
		name    string
		feeID   uint16
		wantErr bool
	}{
		{spec: "l0", name: "l0"},
		{spec: "tpc-3:12", name: "tpc-3", feeID: 12},
		{spec: "its:0x1f", name: "its", feeID: 0x1f},
		{spec: ":3", wantErr: true},
		{spec: "l1:70000", wantErr: true},
		{spec: "l1:abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			l, err := parseLinkSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLinkSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if l.Name != tt.name || l.Identity.FeeID != tt.feeID {
				t.Errorf("parseLinkSpec(%q) = %+v", tt.spec, l)
			}
		})
	}
}

func TestExitCodeConstants(t *testing.T) {
	if exitSuccess != runtime.ExitCodeSuccess {
		t.Errorf("exitSuccess = %d", exitSuccess)
	}
	if exitInputError != runtime.ExitCodeInputError {
		t.Errorf("exitInputError = %d", exitInputError)
	}
	if exitSinkFailure != runtime.ExitCodeSinkFailure {
		t.Errorf("exitSinkFailure = %d", exitSinkFailure)
	}
	if exitInvariantError != runtime.ExitCodeInvariantFailure {
		t.Errorf("exitInvariantError = %d", exitInvariantError)
	}
}

// newTestCLIContext creates a cli.Context for testing resolve* helpers.
// flagValues maps flag names to values that are explicitly set.
// defaultFlags maps flag names to default values (not explicitly set).
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"detector": "cli-val"}, nil)
	if got := resolveString(c, "detector", "config-val"); got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"detector": ""})
	if got := resolveString(c, "detector", "config-val"); got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_UrfaveDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"output": "raw"})
	if got := resolveString(c, "output", ""); got != "raw" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *hbconfig.Config) string { return c.Detector })
	if got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
}

func TestConfigVal_NonNil(t *testing.T) {
	cfg := &hbconfig.Config{Detector: "tpc"}
	got := configVal(cfg, func(c *hbconfig.Config) string { return c.Detector })
	if got != "tpc" {
		t.Errorf("expected config value, got %q", got)
	}
}

func TestResolveInt_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"parallel": "4"}, nil)
	if got := resolveInt(c, "parallel", 2); got != 4 {
		t.Errorf("expected CLI 4 to win, got %d", got)
	}
}

func TestResolveInt_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"parallel": "0"})
	if got := resolveInt(c, "parallel", 2); got != 2 {
		t.Errorf("expected config fallback 2, got %d", got)
	}
}

func TestResolveInt64_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"buffer-bytes": "0"})
	if got := resolveInt64(c, "buffer-bytes", 1<<20); got != 1<<20 {
		t.Errorf("expected config fallback, got %d", got)
	}
}

func TestResolveBool_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"digest": "true"}, nil)
	if !resolveBool(c, "digest", false) {
		t.Error("expected CLI true to win")
	}
}

func TestResolveBool_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"digest": "false"})
	if !resolveBool(c, "digest", true) {
		t.Error("expected config true to be used")
	}
}

func TestResolveDuration_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "flush-interval"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("flush-interval", 0, "")
	_ = fs.Set("flush-interval", "250ms")
	c := cli.NewContext(app, fs, nil)

	if got := resolveDuration(c, "flush-interval", time.Second); got != 250*time.Millisecond {
		t.Errorf("expected CLI 250ms to win, got %v", got)
	}
}

func TestResolveDuration_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "flush-interval"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("flush-interval", 0, "")
	c := cli.NewContext(app, fs, nil)

	if got := resolveDuration(c, "flush-interval", time.Second); got != time.Second {
		t.Errorf("expected config fallback 1s, got %v", got)
	}
}

func TestBuildLinks(t *testing.T) {
	c := newTestCLIContext(t, nil, nil)

	links, err := buildLinks(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].Name != DefaultLink {
		t.Errorf("default links = %+v", links)
	}

	cfg := &hbconfig.Config{Links: []hbconfig.LinkConfig{{Name: "a"}, {Name: "b"}}}
	cfg.Links[1].FeeID = 7
	links, err = buildLinks(c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 || links[1].Name != "b" || links[1].Identity.FeeID != 7 {
		t.Errorf("config links = %+v", links)
	}
}

func TestBuildSource(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"input": "hits_{link}.csv"}, map[string]string{"input-format": "", "count": "0"})
	src, err := buildSource(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	fs, ok := src.(runtime.FileSource)
	if !ok || fs.Path != "hits_{link}.csv" {
		t.Errorf("source = %#v", src)
	}

	c = newTestCLIContext(t, map[string]string{"count": "25"}, map[string]string{"input": "", "input-format": ""})
	src, err = buildSource(c, nil)
	if err != nil {
		t.Fatal(err)
	}
	ps, ok := src.(runtime.PoissonSource)
	if !ok || ps.Count != 25 {
		t.Errorf("source = %#v", src)
	}

	c = newTestCLIContext(t, map[string]string{"input": "hits.bin", "input-format": "parquet"}, nil)
	if _, err := buildSource(c, nil); err == nil || !strings.Contains(err.Error(), "invalid --input-format") {
		t.Errorf("expected input-format error, got %v", err)
	}
}

func newAdapterTestContext(t *testing.T, flags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "adapter-url"},
		&cli.StringFlag{Name: "adapter-channel"},
		&cli.DurationFlag{Name: "adapter-timeout", Value: 10 * time.Second},
		&cli.IntFlag{Name: "adapter-retries", Value: 3},
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("adapter-url", "", "")
	fs.String("adapter-channel", "", "")
	fs.Duration("adapter-timeout", 10*time.Second, "")
	fs.Int("adapter-retries", 3, "")

	for name, val := range flags {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	// Headers go through the config path; urfave slices need app.Run.
	return cli.NewContext(app, fs, nil)
}

func TestParseAdapterConfig_WebhookValid(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{"adapter-url": "https://hooks.example.com/hbframe"})
	ac, err := parseAdapterConfigWithPrecedence(c, nil, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "https://hooks.example.com/hbframe" || ac.timeout != 10*time.Second || ac.retries != 3 {
		t.Errorf("adapter choice = %+v", ac)
	}
}

func TestParseAdapterConfig_MissingURL(t *testing.T) {
	for _, typ := range []string{"webhook", "redis"} {
		c := newAdapterTestContext(t, nil)
		_, err := parseAdapterConfigWithPrecedence(c, nil, typ)
		if err == nil || !strings.Contains(err.Error(), "--adapter-url is required when --adapter="+typ) {
			t.Errorf("%s: expected missing url error, got %v", typ, err)
		}
	}
}

func TestParseAdapterConfig_UnknownType(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{"adapter-url": "x"})
	_, err := parseAdapterConfigWithPrecedence(c, nil, "kafka")
	if err == nil || !strings.Contains(err.Error(), "unknown adapter type") {
		t.Errorf("expected unknown adapter type error, got %v", err)
	}
}

func TestParseAdapterConfig_ConfigProvidesValues(t *testing.T) {
	retries := 0
	cfg := &hbconfig.Config{Adapter: hbconfig.AdapterConfig{
		URL:     "redis://localhost:6379/0",
		Channel: "hbframe:done",
		Retries: &retries,
		Headers: map[string]string{"X-Team": "daq"},
		Timeout: hbconfig.Duration{Duration: 2 * time.Second},
	}}
	c := newAdapterTestContext(t, nil)
	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "redis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != cfg.Adapter.URL || ac.channel != "hbframe:done" {
		t.Errorf("adapter choice = %+v", ac)
	}
	if ac.retries != 0 {
		t.Errorf("config retries 0 should be honored, got %d", ac.retries)
	}
	if ac.timeout != 2*time.Second {
		t.Errorf("timeout = %v, want config 2s", ac.timeout)
	}
	if ac.headers["X-Team"] != "daq" {
		t.Errorf("headers = %v", ac.headers)
	}
}

func TestParseAdapterConfig_CLIOverridesConfig(t *testing.T) {
	cfg := &hbconfig.Config{Adapter: hbconfig.AdapterConfig{URL: "https://config.example.com"}}
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url":     "https://cli.example.com",
		"adapter-retries": "5",
	})
	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "https://cli.example.com" || ac.retries != 5 {
		t.Errorf("adapter choice = %+v", ac)
	}
}

// newTestApp creates a cli.App with the write commands wired up and
// ExitErrHandler suppressed so errors are returned instead of calling
// os.Exit.
func newTestApp() *cli.App {
	app := cli.NewApp()
	app.Commands = []*cli.Command{RunCommand(), GenerateCommand()}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("error %v is not a cli.ExitCoder", err)
	}
	return ec.ExitCode()
}

func TestRunAction_InvalidPolicy(t *testing.T) {
	err := newTestApp().Run([]string{"hbframe", "run", "--policy", "eventual", "--output", "none"})
	if code := exitCode(t, err); code != exitInputError {
		t.Errorf("exit code = %d, want %d", code, exitInputError)
	}
	if !strings.Contains(err.Error(), "invalid --policy") {
		t.Errorf("error should name --policy, got: %v", err)
	}
}

func TestRunAction_MissingStoragePath(t *testing.T) {
	err := newTestApp().Run([]string{"hbframe", "run", "--storage-backend", "fs", "--output", "none"})
	if code := exitCode(t, err); code != exitInputError {
		t.Errorf("exit code = %d, want %d", code, exitInputError)
	}
	if !strings.Contains(err.Error(), "--storage-path is required") {
		t.Errorf("error should mention --storage-path is required, got: %v", err)
	}
}

func TestRunAction_ConfigFileNotFound(t *testing.T) {
	err := newTestApp().Run([]string{"hbframe", "run", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if code := exitCode(t, err); code != exitInputError {
		t.Errorf("exit code = %d, want %d", code, exitInputError)
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunAction_RawOutputAndReport(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.json")

	err := newTestApp().Run([]string{"hbframe", "run",
		"--quiet",
		"--log-level", "error",
		"--detector", "tpc",
		"--link", "l0:3",
		"--count", "50",
		"--seed", "7",
		"--output-dir", dir,
		"--report", reportPath,
	})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("exit code = %d (%v)", code, err)
	}

	rawPath := filepath.Join(dir, "tpc_l0.raw")
	info, err := os.Stat(rawPath)
	if err != nil {
		t.Fatalf("raw output missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("raw output is empty")
	}

	f, err := os.Open(reportPath)
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	defer func() { _ = f.Close() }()
	report, err := runtime.ReadReport(f)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if report.Outcome != types.OutcomeSuccess || len(report.Links) != 1 {
		t.Fatalf("report = %+v", report)
	}
	lr := report.Links[0]
	if lr.FeeID != 3 || lr.Output == nil || lr.Output.Path != rawPath || lr.Output.Bytes != info.Size() {
		t.Errorf("link report = %+v", lr)
	}
	if lr.Summary.FramesOpened == 0 || lr.Summary.FramesOpened != lr.Summary.FramesClosed {
		t.Errorf("summary frames opened %d closed %d", lr.Summary.FramesOpened, lr.Summary.FramesClosed)
	}
}

func TestRunAction_CLIOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "hbframe.yaml")
	content := "detector: cfg\nlinks:\n  - name: a\n  - name: b\n    fee_id: 9\nsource:\n  count: 20\noutput:\n  kind: ipc\n  dir: " + dir + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	err := newTestApp().Run([]string{"hbframe", "run",
		"--config", configPath,
		"--quiet",
		"--log-level", "error",
		"--detector", "cli",
	})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("exit code = %d (%v)", code, err)
	}
	for _, link := range []string{"a", "b"} {
		if _, err := os.Stat(filepath.Join(dir, "cli_"+link+".ipc")); err != nil {
			t.Errorf("output of link %s: %v", link, err)
		}
	}
}

func TestGenerateThenRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "hits.csv.xz")

	err := newTestApp().Run([]string{"hbframe", "generate", "--output", input, "--count", "40", "--seed", "3"})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("generate exit code = %d (%v)", code, err)
	}

	err = newTestApp().Run([]string{"hbframe", "run",
		"--quiet",
		"--log-level", "error",
		"--input", input,
		"--output", "ipc",
		"--output-dir", dir,
	})
	if code := exitCode(t, err); code != exitSuccess {
		t.Fatalf("run exit code = %d (%v)", code, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "l0.ipc")); err != nil {
		t.Errorf("ipc output: %v", err)
	}
}
