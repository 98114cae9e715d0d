//go:build linux

package memfd

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sys/unix"

	"github.com/gogpu/dmabuf"
)

// Package errors.
var (
	// ErrInvalidDimensions is returned when width or height is zero or too large.
	ErrInvalidDimensions = errors.New("memfd: invalid dimensions")

	// ErrUnsupportedFormat is returned for formats without a known layout.
	ErrUnsupportedFormat = errors.New("memfd: unsupported format")

	// ErrUnsupportedModifier is returned when none of the requested
	// modifiers is linear or implicit.
	ErrUnsupportedModifier = errors.New("memfd: unsupported modifier")

	// ErrClosed is returned when a closed Buffer is used.
	ErrClosed = errors.New("memfd: buffer closed")
)

// MaxDimension is the largest accepted width or height.
const MaxDimension = 16384

// Allocator creates memfd-backed buffers.
// It is safe for concurrent use.
type Allocator struct {
	opts options
}

// New returns an allocator configured by opts.
func New(opts ...Option) *Allocator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Allocator{opts: o}
}

// CreateBuffer allocates a zero-filled buffer.
//
// The buffer is linear. If modifiers is empty or contains
// dmabuf.ModifierInvalid the planes report an implicit layout; if it
// contains dmabuf.ModifierLinear they report linear. Any other list fails
// with ErrUnsupportedModifier.
func (a *Allocator) CreateBuffer(width, height uint32, format dmabuf.Fourcc, modifiers []dmabuf.Modifier) (*Buffer, error) {
	if width == 0 || height == 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	specs, ok := formats[format]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	modifier, err := chooseModifier(modifiers)
	if err != nil {
		return nil, err
	}

	layouts, length := computeLayout(width, height, specs, a.opts.strideAlign)
	fd, err := a.createFile(length)
	if err != nil {
		return nil, err
	}

	dmabuf.Logger().Debug("memfd: created buffer",
		"fd", fd, "width", width, "height", height, "format", format.String(), "bytes", length)
	return &Buffer{
		fd:     fd,
		size:   dmabuf.Size{Width: int(width), Height: int(height)},
		format: dmabuf.Format{Code: format, Modifier: modifier},
		planes: layouts,
		length: length,
	}, nil
}

// createFile creates, sizes and optionally seals a memfd.
func (a *Allocator) createFile(length int64) (int, error) {
	flags := unix.MFD_CLOEXEC
	if a.opts.seal {
		flags |= unix.MFD_ALLOW_SEALING
	}
	fd, err := unix.MemfdCreate(a.opts.name, flags)
	if err != nil {
		return -1, fmt.Errorf("memfd: create: %w", err)
	}
	if err := unix.Ftruncate(fd, length); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("memfd: truncate to %d bytes: %w", length, err)
	}
	if a.opts.seal {
		seals := unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_SEAL
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, seals); err != nil { //nolint:gosec // fd is non-negative
			_ = unix.Close(fd)
			return -1, fmt.Errorf("memfd: seal: %w", err)
		}
	}
	return fd, nil
}

// chooseModifier picks the modifier reported for the planes.
func chooseModifier(modifiers []dmabuf.Modifier) (dmabuf.Modifier, error) {
	switch {
	case slices.Contains(modifiers, dmabuf.ModifierLinear):
		return dmabuf.ModifierLinear, nil
	case len(modifiers) == 0 || slices.Contains(modifiers, dmabuf.ModifierInvalid):
		return dmabuf.ModifierInvalid, nil
	default:
		return 0, fmt.Errorf("%w: none of %v", ErrUnsupportedModifier, modifiers)
	}
}

var _ dmabuf.Allocator[*Buffer] = (*Allocator)(nil)
