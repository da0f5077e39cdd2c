package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

var (
	// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
	ErrNoMetricsFound = errors.New("no metrics records found")
	// ErrNoSummaryFound is returned when no summary records exist in the dataset.
	ErrNoSummaryFound = errors.New("no summary records found")
)

// Filter narrows a query to one session, detector or link. Empty fields
// match everything.
type Filter struct {
	SessionID string
	Detector  string
	Link      string
}

func (f Filter) snapshotMatches(snap *lode.DatasetSnapshot) bool {
	return snapshotHas(snap, "session_id", f.SessionID) &&
		snapshotHas(snap, "detector", f.Detector) &&
		snapshotHas(snap, "link", f.Link)
}

func (f Filter) recordMatches(record map[string]any) bool {
	return (f.SessionID == "" || toString(record["session_id"]) == f.SessionID) &&
		(f.Detector == "" || toString(record["detector"]) == f.Detector) &&
		(f.Link == "" || toString(record["link"]) == f.Link)
}

// QueryLatestMetrics finds and reads the most recent metrics record.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, f Filter) (map[string]any, error) {
	return queryLatest(ctx, ds, RecordKindMetrics, f, ErrNoMetricsFound)
}

// QueryLatestSummary finds and reads the most recent session summary record.
func QueryLatestSummary(ctx context.Context, ds lode.Dataset, f Filter) (map[string]any, error) {
	return queryLatest(ctx, ds, RecordKindSummary, f, ErrNoSummaryFound)
}

func queryLatest(ctx context.Context, ds lode.Dataset, kind string, f Filter, notFound error) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, fmt.Sprintf("%s/snapshots", ds.ID()))
	}

	// Latest first; snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotHas(snap, "record_kind", kind) || !f.snapshotMatches(snap) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are authoritative.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != kind {
				continue
			}
			if f.recordMatches(record) {
				return record, nil
			}
		}
	}
	return nil, notFound
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
