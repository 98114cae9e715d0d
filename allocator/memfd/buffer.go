//go:build linux

package memfd

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gogpu/dmabuf"
)

// dupFD duplicates a descriptor for one exported plane. Tests replace it.
var dupFD = func(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0) //nolint:gosec // fd is non-negative
}

// Buffer is a memfd-backed buffer. All planes live in one file.
//
// Buffer owns its file descriptor until Close. Exported Dmabufs hold
// duplicates, so they outlive the Buffer.
type Buffer struct {
	mu     sync.Mutex
	fd     int // -1 once closed
	size   dmabuf.Size
	format dmabuf.Format
	planes []planeLayout
	length int64
}

// Size returns the buffer size in pixels.
func (b *Buffer) Size() dmabuf.Size { return b.size }

// Format returns the buffer format.
func (b *Buffer) Format() dmabuf.Format { return b.format }

// Len returns the size of the backing file in bytes.
func (b *Buffer) Len() int64 { return b.length }

// NumPlanes returns the number of planes.
func (b *Buffer) NumPlanes() int { return len(b.planes) }

// Stride returns the row pitch of plane i.
func (b *Buffer) Stride(i int) uint32 { return b.planes[i].stride }

// Offset returns the byte offset of plane i.
func (b *Buffer) Offset(i int) uint32 { return b.planes[i].offset }

// Export returns a Dmabuf whose planes each hold a duplicate of the memfd.
func (b *Buffer) Export() (*dmabuf.Dmabuf, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return nil, ErrClosed
	}

	bld := dmabuf.NewBuilder(b.size, b.format.Code, 0)
	for i, p := range b.planes {
		dup, err := dupFD(b.fd)
		if err != nil {
			bld.Close()
			return nil, fmt.Errorf("memfd: dup plane %d: %w", i, err)
		}
		bld.AddPlane(dup, uint32(i), p.offset, p.stride, b.format.Modifier) //nolint:gosec // at most 3 planes
	}
	return bld.Build(), nil
}

// Map maps the whole buffer read-write. The mapping stays valid after
// Close.
func (b *Buffer) Map() (*Mapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return nil, ErrClosed
	}
	return mapFD(b.fd, b.length)
}

// Close closes the buffer's file descriptor. Exported Dmabufs and
// mappings are unaffected. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return nil
	}
	fd := b.fd
	b.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("memfd: close: %w", err)
	}
	return nil
}

var (
	_ dmabuf.Buffer   = (*Buffer)(nil)
	_ dmabuf.Exporter = (*Buffer)(nil)
)
