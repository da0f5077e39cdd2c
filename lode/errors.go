package lode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

// Storage failure kinds. StorageError.Is matches them, so callers test
// with errors.Is(err, ErrXxx).
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	// ErrAuth is a credentials failure; ErrAccessDenied is a valid
	// identity without permission.
	ErrAuth         = errors.New("authentication failed")
	ErrAccessDenied = errors.New("access denied")
	ErrNetwork      = errors.New("network error")
	ErrUnclassified = errors.New("storage error")
)

// StorageError is a classified failure of a header, summary or metrics
// write, a query or client setup.
type StorageError struct {
	// Kind is one of the Err* sentinels.
	Kind error
	// Op is "write", "read" or "init".
	Op string
	// Path is the partition path or dataset involved, if any.
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the Kind sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewStorageError creates a classified storage error.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

// WrapWriteError classifies a failed write. A nil err stays nil.
func WrapWriteError(err error, path string) error { return wrap(err, "write", path) }

// WrapReadError classifies a failed query. A nil err stays nil.
func WrapReadError(err error, path string) error { return wrap(err, "read", path) }

// WrapInitError classifies a failed client setup. A nil err stays nil.
func WrapInitError(err error, dataset string) error { return wrap(err, "init", dataset) }

func wrap(err error, op, path string) error {
	if err == nil {
		return nil
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// messagePatterns classify errors that carry no typed cause, mostly S3
// API errors. Order matters: the first matching row wins.
var messagePatterns = []struct {
	kind error
	subs []string
}{
	{ErrAccessDenied, []string{"AccessDenied", "Forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "EACCES"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "ENOENT", "404", "NoSuchKey", "NoSuchBucket"}},
	{ErrDiskFull, []string{"no space left", "disk full", "ENOSPC", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"SlowDown", "rate exceeded", "throttl", "429", "TooManyRequests"}},
	{ErrAuth, []string{"NoCredentialProviders", "credentials", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "401", "Unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "DNS", "dial tcp"}},
}

// classifyError picks the sentinel for err: typed causes first, then
// message patterns.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeout interface{ Timeout() bool }
	switch {
	case errors.As(err, &timeout) && timeout.Timeout(),
		errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, syscall.ENOSPC):
		return ErrDiskFull
	}

	msg := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		for _, sub := range p.subs {
			if strings.Contains(msg, strings.ToLower(sub)) {
				return p.kind
			}
		}
	}
	return ErrUnclassified
}
