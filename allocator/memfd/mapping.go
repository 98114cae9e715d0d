//go:build linux

package memfd

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gogpu/dmabuf"
)

// ErrNotMappable is returned when a descriptor reports no size.
var ErrNotMappable = errors.New("memfd: descriptor is not mappable")

// Mapping is a shared read-write memory mapping of a buffer.
type Mapping struct {
	mu   sync.Mutex
	data []byte
}

// Bytes returns the mapped memory. It must not be used after Close.
func (m *Mapping) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Close unmaps the memory. Close is idempotent.
func (m *Mapping) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("memfd: munmap: %w", err)
	}
	return nil
}

func mapFD(fd int, length int64) (*Mapping, error) {
	if length <= 0 {
		return nil, ErrNotMappable
	}
	data, err := unix.Mmap(fd, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("memfd: mmap %d bytes: %w", length, err)
	}
	return &Mapping{data: data}, nil
}

// MapPlane maps the file behind plane i of d, from the start of the file.
// Use the plane's Offset and Stride to locate its rows.
//
// It works for any descriptor that supports mmap and reports its size via
// lseek, which includes memfds and most kernel dmabuf exporters.
func MapPlane(d *dmabuf.Dmabuf, i int) (*Mapping, error) {
	if d.Released() {
		return nil, dmabuf.ErrReleased
	}
	if i < 0 || i >= d.NumPlanes() {
		return nil, fmt.Errorf("memfd: plane %d out of range [0,%d)", i, d.NumPlanes())
	}
	var fd int
	for j, p := range d.Planes() {
		if j == i {
			fd = p.Fd()
			break
		}
	}
	// fd is borrowed from d; d must stay reachable until the mapping exists.
	defer runtime.KeepAlive(d)

	length, err := unix.Seek(fd, 0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("memfd: size of plane %d: %w", i, err)
	}
	return mapFD(fd, length)
}
