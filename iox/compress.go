package iox

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// Compression selects the on-disk encoding of a raw output file.
type Compression string

const (
	// CompressionNone writes bytes as-is.
	CompressionNone Compression = "none"
	// CompressionXZ wraps the file in an xz stream.
	CompressionXZ Compression = "xz"
)

// XZSuffix is the filename suffix of xz-compressed files.
const XZSuffix = ".xz"

// ParseCompression validates a compression name. Empty selects none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionXZ:
		return CompressionXZ, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want none or xz)", s)
	}
}

// DetectCompression infers the compression from a path suffix.
func DetectCompression(path string) Compression {
	if strings.HasSuffix(path, XZSuffix) {
		return CompressionXZ
	}
	return CompressionNone
}

// Open opens path for reading, decompressing xz files on the fly.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if DetectCompression(path) != CompressionXZ {
		return f, nil
	}
	xr, err := xz.NewReader(f)
	if err != nil {
		DiscardClose(f)
		return nil, fmt.Errorf("open xz stream %s: %w", path, err)
	}
	return readCloser{Reader: xr, Closer: f}, nil
}

// Create creates (or truncates) path. With CompressionXZ the returned
// writer compresses; Close finishes the xz stream and then closes the file.
func Create(path string, c Compression) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if c != CompressionXZ {
		return f, nil
	}
	xw, err := xz.NewWriter(f)
	if err != nil {
		DiscardClose(f)
		return nil, fmt.Errorf("create xz stream %s: %w", path, err)
	}
	return writeCloser{Writer: xw, Closer: closerFunc(func() error {
		return CloseAll(xw, f)
	})}, nil
}
