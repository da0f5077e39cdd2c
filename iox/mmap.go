package iox

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MapFile maps path read-only. The returned closer unmaps and closes the
// file; data must not be used after it. Empty files return empty data.
func MapFile(path string) ([]byte, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		DiscardClose(f)
		return nil, nil, err
	}
	if info.Size() == 0 {
		return []byte{}, f, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		DiscardClose(f)
		return nil, nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return m, closerFunc(func() error {
		return CloseAll(closerFunc(m.Unmap), f)
	}), nil
}
