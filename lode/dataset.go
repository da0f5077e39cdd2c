package lode

import (
	"context"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// NewReadDataset opens the dataset with the partition layout and codec the
// sink writes with.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewReadDatasetFS creates a read Dataset with filesystem storage.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// NewReadDatasetS3 creates a read Dataset with S3 storage.
func NewReadDatasetS3(ctx context.Context, dataset string, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// partitionValue returns the value of key in a Hive-partitioned path.
// Segments compare whole, so session_id=s-1 never matches session_id=s-10.
func partitionValue(path, key string) (string, bool) {
	for seg := range strings.SplitSeq(path, "/") {
		if k, v, ok := strings.Cut(seg, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

// snapshotHas reports whether any file of snap lies under key=value. An
// empty value matches every snapshot.
func snapshotHas(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if v, ok := partitionValue(f.Path, key); ok && v == value {
			return true
		}
	}
	return false
}
