package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/hbframe/metrics"
	"github.com/justapithecus/hbframe/types"
)

// SessionReport is the structured JSON report of a run written by --report.
type SessionReport struct {
	Version    string              `json:"version"`
	Detector   string              `json:"detector"`
	Outcome    types.OutcomeStatus `json:"outcome"`
	Message    string              `json:"message"`
	ExitCode   int                 `json:"exit_code"`
	DurationMs int64               `json:"duration_ms"`
	Policy     string              `json:"policy"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`

	Links   []LinkReport     `json:"links"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// LinkReport is the per-link section of a SessionReport.
type LinkReport struct {
	SessionID   string              `json:"session_id"`
	Link        string              `json:"link"`
	FeeID       uint16              `json:"fee_id"`
	Outcome     types.OutcomeStatus `json:"outcome"`
	Message     string              `json:"message"`
	DurationMs  int64               `json:"duration_ms"`
	StoragePath string              `json:"storage_path,omitempty"`

	Summary types.SessionSummary `json:"summary"`
	Policy  ReportPolicy         `json:"policy"`
	Output  *ReportOutput        `json:"output,omitempty"`
	Metrics metrics.Snapshot     `json:"metrics"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name             string           `json:"name"`
	HeadersReceived  int64            `json:"headers_received"`
	HeadersPersisted int64            `json:"headers_persisted"`
	HeadersDropped   int64            `json:"headers_dropped"`
	BatchesDropped   int64            `json:"batches_dropped"`
	Flushes          int64            `json:"flushes"`
	Errors           int64            `json:"errors"`
	FlushTriggers    map[string]int64 `json:"flush_triggers,omitempty"`
}

// ReportOutput describes a link's raw or ipc output file.
type ReportOutput struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Digest string `json:"digest,omitempty"`
	Pages  int64  `json:"pages"`
	Bytes  int64  `json:"bytes"`
}

// BuildReport composes a SessionReport from a run result.
func BuildReport(res *Result) *SessionReport {
	report := &SessionReport{
		Version:    types.Version,
		Detector:   res.Detector,
		Outcome:    res.Outcome.Status,
		Message:    res.Outcome.Message,
		ExitCode:   ExitCode(res.Outcome.Status),
		DurationMs: res.Duration.Milliseconds(),
		Policy:     res.Policy,
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
		Links:      make([]LinkReport, 0, len(res.Links)),
		Metrics:    res.Metrics,
	}
	for _, lr := range res.Links {
		report.Links = append(report.Links, buildLinkReport(lr, res.Policy))
	}
	return report
}

func buildLinkReport(lr *LinkResult, policyName string) LinkReport {
	rep := LinkReport{
		SessionID:   lr.Meta.SessionID,
		Link:        lr.Meta.Link,
		FeeID:       lr.Meta.FeeID,
		Outcome:     lr.Outcome.Status,
		Message:     lr.Outcome.Message,
		DurationMs:  lr.Duration.Milliseconds(),
		StoragePath: lr.StoragePath,
		Summary:     lr.Summary,
		Policy: ReportPolicy{
			Name:             policyName,
			HeadersReceived:  lr.PolicyStats.HeadersReceived,
			HeadersPersisted: lr.PolicyStats.HeadersPersisted,
			HeadersDropped:   lr.PolicyStats.HeadersDropped,
			BatchesDropped:   lr.PolicyStats.BatchesDropped,
			Flushes:          lr.PolicyStats.FlushCount,
			Errors:           lr.PolicyStats.Errors,
		},
		Metrics: lr.Metrics,
	}
	if len(lr.FlushTriggers) > 0 {
		rep.Policy.FlushTriggers = make(map[string]int64, len(lr.FlushTriggers))
		for k, v := range lr.FlushTriggers {
			rep.Policy.FlushTriggers[string(k)] = v
		}
	}
	if lr.Output.Path != "" {
		out := lr.Output
		rep.Output = &out
	}
	return rep
}

// WriteReport writes the report as indented JSON to path.
// A path of "-" writes to stderr.
func WriteReport(report any, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func writeReportTo(report any, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report any) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// ReadReport decodes a report written by WriteReport.
func ReadReport(r io.Reader) (*SessionReport, error) {
	var report SessionReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}
