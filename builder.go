package dmabuf

import (
	"slices"
)

// Builder accumulates the planes of a dmabuf.
//
// Planes may be added in any order; Build sorts them by plane index.
// A Builder is single use and not safe for concurrent use.
//
// Example:
//
//	b := dmabuf.NewBuilder(dmabuf.Size{Width: 1920, Height: 1080}, dmabuf.NV12, 0)
//	b.AddPlane(yFd, 0, 0, 1920, dmabuf.ModifierLinear)
//	b.AddPlane(uvFd, 1, 0, 1920, dmabuf.ModifierLinear)
//	buf := b.Build()
//	if buf == nil {
//	    // no planes were added
//	}
//	defer buf.Release()
type Builder struct {
	planes []Plane
	size   Size
	format Fourcc
	flags  Flags
	done   bool
}

// NewBuilder returns an empty builder for a buffer of the given size and format.
func NewBuilder(size Size, format Fourcc, flags Flags) *Builder {
	return &Builder{
		planes: make([]Plane, 0, MaxPlanes),
		size:   size,
		format: format,
		flags:  flags,
	}
}

// BuilderFromBuffer returns an empty builder taking size and format from src.
//
// src is only a template: the contents of the new buffer are determined by
// the descriptors passed to AddPlane, which need not refer to src.
func BuilderFromBuffer(src Buffer, flags Flags) *Builder {
	return NewBuilder(src.Size(), src.Format().Code, flags)
}

// AddPlane adds a plane and takes ownership of fd.
//
// It returns false, leaving the builder unchanged and fd owned by the
// caller, if the builder already holds MaxPlanes planes or was already
// built. Plane indices are not checked here; Build orders planes by index.
func (b *Builder) AddPlane(fd int, index, offset, stride uint32, modifier Modifier) bool {
	if b.done || len(b.planes) == MaxPlanes {
		return false
	}
	b.planes = append(b.planes, Plane{
		fd:       fd,
		index:    index,
		offset:   offset,
		stride:   stride,
		modifier: modifier,
	})
	return true
}

// Len returns the number of planes added so far.
func (b *Builder) Len() int {
	return len(b.planes)
}

// Build finalizes the buffer and returns the first strong reference to it.
//
// Build returns nil if no planes were added or the builder was already
// built. Planes with equal indices keep their insertion order.
func (b *Builder) Build() *Dmabuf {
	if b.done || len(b.planes) == 0 {
		return nil
	}
	b.done = true

	planes := b.planes
	b.planes = nil
	slices.SortStableFunc(planes, func(x, y Plane) int {
		switch {
		case x.index < y.index:
			return -1
		case x.index > y.index:
			return 1
		default:
			return 0
		}
	})

	d := newDescriptor(planes, b.size, b.format, b.flags)
	Logger().Debug("dmabuf: built",
		"id", d.id, "size", b.size, "format", b.format.String(), "planes", len(planes))
	return newHandle(d)
}

// Close discards an unbuilt builder, closing the descriptors it owns.
// It is a no-op after Build.
func (b *Builder) Close() {
	if b.done {
		return
	}
	b.done = true
	closePlanes(b.planes)
	b.planes = nil
}
