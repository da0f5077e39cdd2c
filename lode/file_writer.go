package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidFilename is returned for sidecar names containing path elements.
var ErrInvalidFilename = errors.New("invalid sidecar filename")

// FileWriter stores sidecar files (session report, occupancy chart) beside
// a session's records. Sidecars are plain objects, outside any snapshot.
type FileWriter interface {
	PutFile(ctx context.Context, filename, contentType string, data []byte) error
}

var _ FileWriter = (*LodeClient)(nil)

// PutFile stores data at <session>/files/<filename>. The store is opened on
// first use. Lode stores carry no content type, so contentType is ignored.
func (c *LodeClient) PutFile(ctx context.Context, filename, _ string, data []byte) error {
	if !validFilename(filename) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	if c.storeErr != nil {
		return fmt.Errorf("file write store init failed: %w", c.storeErr)
	}

	key := c.buildFilePath(filename)
	if err := c.store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, key)
	}
	return nil
}

func validFilename(name string) bool {
	return name != "" && name != "." && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

// buildFilePath places the file under the session's partition prefix, the
// same prefix the dataset layout gives its records.
func (c *LodeClient) buildFilePath(filename string) string {
	return path.Join("datasets", c.config.Dataset, "partitions",
		"detector="+c.config.Detector,
		"link="+c.config.Link,
		"day="+c.config.Day,
		"session_id="+c.config.SessionID,
		"files", filename)
}
