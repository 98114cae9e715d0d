package dmabuf

import (
	"io"
)

// Exporter is implemented by buffers that can be exported as a Dmabuf.
//
// The returned Dmabuf must own its own descriptors (typically duplicates),
// so that it stays valid after the exporting buffer is closed.
type Exporter interface {
	// Export returns a new strong reference describing this buffer.
	Export() (*Dmabuf, error)
}

// Export returns a clone of h. A Dmabuf is already in exported form.
func (h *Dmabuf) Export() (*Dmabuf, error) {
	c := h.Clone()
	if c == nil {
		return nil, ErrReleased
	}
	return c, nil
}

// Allocator creates buffers of a backend-specific type B.
type Allocator[B any] interface {
	// CreateBuffer allocates a width x height buffer in the given format,
	// using one of modifiers. An empty modifier list, or one containing
	// ModifierInvalid, lets the backend choose an implicit layout.
	CreateBuffer(width, height uint32, format Fourcc, modifiers []Modifier) (B, error)
}

// AnyError wraps an error of any backend behind a single type.
// Error and Unwrap expose the wrapped error unchanged, so errors.Is and
// errors.As reach the original cause.
//
// Create one with NewAnyError. The zero value wraps nothing and reports
// a generic message.
type AnyError struct {
	err error
}

// NewAnyError wraps err. It returns nil if err is nil.
func NewAnyError(err error) *AnyError {
	if err == nil {
		return nil
	}
	return &AnyError{err: err}
}

// Error returns the wrapped error's message.
func (e *AnyError) Error() string {
	if e.err == nil {
		return "dmabuf: unknown allocator error"
	}
	return e.err.Error()
}

// Unwrap returns the wrapped error.
func (e *AnyError) Unwrap() error {
	return e.err
}

// DmabufAllocator adapts an allocator whose buffers implement Exporter into
// an Allocator of *Dmabuf. Allocation and export failures are returned as
// *AnyError.
//
// After export the backend buffer is no longer referenced. If it
// implements io.Closer it is closed whether the export succeeded or not;
// a *Dmabuf backend buffer is released.
type DmabufAllocator[B Exporter] struct {
	backend Allocator[B]
}

// NewDmabufAllocator wraps backend.
func NewDmabufAllocator[B Exporter](backend Allocator[B]) *DmabufAllocator[B] {
	return &DmabufAllocator[B]{backend: backend}
}

// Backend returns the wrapped allocator.
func (a *DmabufAllocator[B]) Backend() Allocator[B] {
	return a.backend
}

// CreateBuffer allocates a backend buffer and exports it.
func (a *DmabufAllocator[B]) CreateBuffer(width, height uint32, format Fourcc, modifiers []Modifier) (*Dmabuf, error) {
	buf, err := a.backend.CreateBuffer(width, height, format, modifiers)
	if err != nil {
		return nil, NewAnyError(err)
	}
	defer closeBackendBuffer(buf)

	d, err := buf.Export()
	if err != nil {
		return nil, NewAnyError(err)
	}
	Logger().Debug("dmabuf: allocated",
		"id", d.ID(), "width", width, "height", height, "format", d.Format().String())
	return d, nil
}

func closeBackendBuffer(buf any) {
	switch b := buf.(type) {
	case *Dmabuf:
		b.Release()
	case io.Closer:
		if err := b.Close(); err != nil {
			Logger().Warn("dmabuf: closing backend buffer failed", "err", err)
		}
	}
}

var _ Allocator[*Dmabuf] = (*DmabufAllocator[*Dmabuf])(nil)
