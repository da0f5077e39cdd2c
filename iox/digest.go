package iox

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/minio/highwayhash"
)

// DefaultDigestKey is the HighwayHash key used when none is configured.
// Digests are for comparing outputs, not for authentication.
var DefaultDigestKey = []byte("hbframe-raw-data-header-digest!!")

// DigestWriter forwards writes to an underlying writer and hashes them
// with HighwayHash-256.
type DigestWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewDigestWriter wraps w. key must be 32 bytes; nil selects
// DefaultDigestKey.
func NewDigestWriter(w io.Writer, key []byte) (*DigestWriter, error) {
	if key == nil {
		key = DefaultDigestKey
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("digest key must be exactly 32 bytes, got %d", len(key))
	}
	h, err := highwayhash.New(key)
	if err != nil {
		return nil, fmt.Errorf("create digest: %w", err)
	}
	return &DigestWriter{w: w, h: h}, nil
}

func (d *DigestWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	d.h.Write(p[:n])
	d.n += int64(n)
	return n, err
}

// Sum returns the hex digest of everything written so far.
func (d *DigestWriter) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Len returns the number of bytes written so far.
func (d *DigestWriter) Len() int64 { return d.n }

// Digest hashes r to the end and returns its hex digest.
func Digest(r io.Reader, key []byte) (string, error) {
	d, err := NewDigestWriter(io.Discard, key)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return d.Sum(), nil
}
