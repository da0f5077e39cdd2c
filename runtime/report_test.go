package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/justapithecus/hbframe/metrics"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/session"
	"github.com/justapithecus/hbframe/types"
)

func newTestResult() *Result {
	ok := &LinkResult{
		Meta:    types.SessionMeta{SessionID: "s-1", Detector: "tpc", Link: "l0", FeeID: 100},
		Summary: types.SessionSummary{SessionID: "s-1", Link: "l0", Headers: 12, FramesOpened: 6},
		Outcome: types.SessionOutcome{Status: types.OutcomeSuccess, Message: "session completed"},
		PolicyStats: policy.Stats{
			HeadersReceived:  12,
			HeadersPersisted: 12,
			FlushCount:       3,
		},
		FlushTriggers: map[policy.FlushTrigger]int64{policy.FlushTriggerCount: 2, policy.FlushTriggerTermination: 1},
		Output:        ReportOutput{Kind: OutputRaw, Path: "out/tpc_l0.raw", Digest: "abcd", Pages: 12, Bytes: 1536},
		Metrics:       metrics.Snapshot{HeadersEmitted: 12},
		Duration:      1500 * time.Millisecond,
	}
	failed := &LinkResult{
		Meta:    types.SessionMeta{SessionID: "s-2", Detector: "tpc", Link: "l1", FeeID: 101},
		Outcome: types.SessionOutcome{Status: types.OutcomeInputError, Message: "unordered input"},
		Err:     errors.New("unordered input"),
	}
	return &Result{
		Detector:  "tpc",
		Policy:    PolicyStreaming,
		Links:     []*LinkResult{ok, failed},
		Outcome:   Worst(ok.Outcome, failed.Outcome),
		Metrics:   metrics.Sum(ok.Metrics, failed.Metrics),
		Duration:  2 * time.Second,
		Succeeded: 1,
		Failed:    1,
	}
}

func TestBuildReport(t *testing.T) {
	report := BuildReport(newTestResult())

	if report.Version != types.Version {
		t.Errorf("Version = %q", report.Version)
	}
	if report.Outcome != types.OutcomeInputError || report.ExitCode != ExitCodeInputError {
		t.Errorf("outcome = %s exit %d", report.Outcome, report.ExitCode)
	}
	if report.DurationMs != 2000 || report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Links) != 2 {
		t.Fatalf("links = %d", len(report.Links))
	}

	l0 := report.Links[0]
	wantPolicy := ReportPolicy{
		Name:             PolicyStreaming,
		HeadersReceived:  12,
		HeadersPersisted: 12,
		Flushes:          3,
		FlushTriggers:    map[string]int64{"count": 2, "termination": 1},
	}
	if diff := cmp.Diff(wantPolicy, l0.Policy); diff != "" {
		t.Errorf("policy mismatch (-want +got):\n%s", diff)
	}
	if l0.Output == nil || l0.Output.Digest != "abcd" || l0.DurationMs != 1500 {
		t.Errorf("l0 = %+v", l0)
	}

	l1 := report.Links[1]
	if l1.Output != nil {
		t.Errorf("failed link output = %+v, want nil", l1.Output)
	}
	if l1.Policy.FlushTriggers != nil {
		t.Errorf("flush triggers = %v, want nil", l1.Policy.FlushTriggers)
	}
}

func TestWriteReport_File(t *testing.T) {
	report := BuildReport(newTestResult())
	path := filepath.Join(t.TempDir(), "report.json")

	if err := WriteReport(report, path); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	decoded, err := ReadReport(f)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if diff := cmp.Diff(report, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReport_EmptyPath(t *testing.T) {
	if err := WriteReport(&SessionReport{}, ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestWriteReportTo_Writer(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReportTo(BuildReport(newTestResult()), &buf); err != nil {
		t.Fatalf("writeReportTo: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"version", "detector", "outcome", "exit_code", "links", "metrics"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if buf.Bytes()[buf.Len()-1] != '\n' {
		t.Error("report not newline terminated")
	}
}

func TestReadReport_Invalid(t *testing.T) {
	if _, err := ReadReport(bytes.NewReader([]byte("{"))); err == nil {
		t.Error("expected decode error")
	}
}

func TestWorst(t *testing.T) {
	ok := types.SessionOutcome{Status: types.OutcomeSuccess}
	cancelled := types.SessionOutcome{Status: types.OutcomeCancelled}
	input := types.SessionOutcome{Status: types.OutcomeInputError}
	sink := types.SessionOutcome{Status: types.OutcomeSinkFailure}
	invariant := types.SessionOutcome{Status: types.OutcomeInvariantFailure}

	tests := []struct {
		in   []types.SessionOutcome
		want types.OutcomeStatus
	}{
		{nil, types.OutcomeSuccess},
		{[]types.SessionOutcome{ok, ok}, types.OutcomeSuccess},
		{[]types.SessionOutcome{ok, cancelled}, types.OutcomeCancelled},
		{[]types.SessionOutcome{cancelled, input}, types.OutcomeInputError},
		{[]types.SessionOutcome{sink, input}, types.OutcomeSinkFailure},
		{[]types.SessionOutcome{sink, invariant, ok}, types.OutcomeInvariantFailure},
	}
	for _, tt := range tests {
		if got := Worst(tt.in...).Status; got != tt.want {
			t.Errorf("Worst(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := map[types.OutcomeStatus]int{
		types.OutcomeSuccess:          ExitCodeSuccess,
		types.OutcomeInputError:       ExitCodeInputError,
		types.OutcomeCancelled:        ExitCodeInputError,
		types.OutcomeSinkFailure:      ExitCodeSinkFailure,
		types.OutcomeInvariantFailure: ExitCodeInvariantFailure,
	}
	for status, want := range tests {
		if got := ExitCode(status); got != want {
			t.Errorf("ExitCode(%s) = %d, want %d", status, got, want)
		}
	}
}

func TestDetermineOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.OutcomeStatus
	}{
		{"nil", nil, types.OutcomeSuccess},
		{"source", fmt.Errorf("%w: bad row", ErrSource), types.OutcomeInputError},
		{"sink", fmt.Errorf("%w: disk full", session.ErrSink), types.OutcomeSinkFailure},
		{"invariant", fmt.Errorf("%w: count", session.ErrInvariant), types.OutcomeInvariantFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineOutcome(tt.err).Status; got != tt.want {
				t.Errorf("DetermineOutcome(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
