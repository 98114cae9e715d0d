package dmabuf

import (
	"errors"
	"iter"
	"runtime"
	"sync/atomic"
)

// ErrReleased is returned when an operation needs a live handle but the
// handle has already been released.
var ErrReleased = errors.New("dmabuf: handle released")

// nextID hands out descriptor identities. Zero is never used.
var nextID atomic.Uint64

// descriptor is the immutable, shared state behind every handle to one
// buffer. Only the strong count changes after Build.
type descriptor struct {
	id     uint64
	planes []Plane
	size   Size
	format Fourcc
	flags  Flags

	// strong counts live *Dmabuf values. The decrement that reaches zero
	// closes the planes; once zero it never rises again.
	strong atomic.Int64
}

func newDescriptor(planes []Plane, size Size, format Fourcc, flags Flags) *descriptor {
	d := &descriptor{
		id:     nextID.Add(1),
		planes: planes,
		size:   size,
		format: format,
		flags:  flags,
	}
	d.strong.Store(1)
	return d
}

// tryRetain increments the strong count unless it already reached zero.
func (d *descriptor) tryRetain() bool {
	for {
		n := d.strong.Load()
		if n == 0 {
			return false
		}
		if d.strong.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (d *descriptor) release() {
	switch n := d.strong.Add(-1); {
	case n == 0:
		closePlanes(d.planes)
		Logger().Debug("dmabuf: destroyed", "id", d.id, "planes", len(d.planes))
	case n < 0:
		panic("dmabuf: strong count underflow")
	}
}

// handleState records whether one *Dmabuf value still holds its count.
// It is separate from Dmabuf so the leak cleanup can reach it without
// keeping the handle itself reachable.
type handleState struct {
	d        *descriptor
	released atomic.Bool
}

func (s *handleState) release() bool {
	if !s.released.CompareAndSwap(false, true) {
		return false
	}
	s.d.release()
	return true
}

// releaseLeaked runs when a handle is garbage collected without Release.
func releaseLeaked(s *handleState) {
	if s.release() {
		Logger().Warn("dmabuf: handle collected without Release", "id", s.d.id)
	}
}

// Dmabuf is a strong reference to a dmabuf.
//
// Every *Dmabuf holds one reference on the shared descriptor. Clone adds a
// reference, Release gives it back. When the last reference is released
// the plane file descriptors are closed. A *Dmabuf dropped without Release
// is released when the garbage collector reclaims it, but callers should
// not rely on that: descriptors are a scarce kernel resource.
//
// Two handles are equal when they refer to the same descriptor, see Equal
// and ID. Buffers with identical metadata built separately are different
// buffers.
//
// Dmabuf is safe for concurrent use.
type Dmabuf struct {
	state *handleState
}

// newHandle wraps a descriptor whose count was already incremented for it.
func newHandle(d *descriptor) *Dmabuf {
	h := &Dmabuf{state: &handleState{d: d}}
	runtime.AddCleanup(h, releaseLeaked, h.state)
	return h
}

func (h *Dmabuf) desc() *descriptor { return h.state.d }

// Clone returns a new strong reference to the same buffer.
// It returns nil if h has already been released.
func (h *Dmabuf) Clone() *Dmabuf {
	if h.state.released.Load() || !h.desc().tryRetain() {
		return nil
	}
	return newHandle(h.desc())
}

// Release gives up this handle's reference. Releasing the last reference
// closes the buffer's file descriptors. Calling Release more than once on
// the same handle has no further effect.
func (h *Dmabuf) Release() {
	h.state.release()
}

// Released reports whether Release was called on this handle.
func (h *Dmabuf) Released() bool {
	return h.state.released.Load()
}

// Weak returns a weak reference that does not keep the buffer alive.
func (h *Dmabuf) Weak() WeakDmabuf {
	return WeakDmabuf{d: h.desc()}
}

// ID returns an identifier unique to the underlying buffer. Clones share
// it, independently built buffers never do. Use it as a map key.
func (h *Dmabuf) ID() uint64 {
	return h.desc().id
}

// Equal reports whether h and other refer to the same buffer.
func (h *Dmabuf) Equal(other *Dmabuf) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.desc() == other.desc()
}

// Size returns the buffer size in pixels.
func (h *Dmabuf) Size() Size {
	return h.desc().size
}

// Format returns the fourcc code and the modifier of the first plane.
// All planes of a buffer share one modifier.
func (h *Dmabuf) Format() Format {
	d := h.desc()
	return Format{Code: d.format, Modifier: d.planes[0].modifier}
}

// Flags returns the buffer flags.
func (h *Dmabuf) Flags() Flags {
	return h.desc().flags
}

// NumPlanes returns the number of planes.
func (h *Dmabuf) NumPlanes() int {
	return len(h.desc().planes)
}

// Planes returns the planes, ordered by plane index.
// The descriptors remain owned by the buffer and are only valid while h
// is reachable and unreleased; callers passing a Plane's Fd to a syscall
// after their last use of h must call runtime.KeepAlive(h).
func (h *Dmabuf) Planes() iter.Seq2[int, *Plane] {
	planes := h.desc().planes
	return func(yield func(int, *Plane) bool) {
		for i := range planes {
			if !yield(i, &planes[i]) {
				return
			}
		}
	}
}

// Handles returns the plane file descriptors in plane order. They are
// borrowed: they stay valid while a strong reference exists and must not
// be closed by the caller. A handle that becomes unreachable is released
// by the garbage collector, so keep h reachable (runtime.KeepAlive) until
// the descriptors are no longer in use.
func (h *Dmabuf) Handles() iter.Seq[int] {
	return planeField(h, func(p *Plane) int { return p.fd })
}

// Offsets returns the plane offsets in plane order.
func (h *Dmabuf) Offsets() iter.Seq[uint32] {
	return planeField(h, func(p *Plane) uint32 { return p.offset })
}

// Strides returns the plane strides in plane order.
func (h *Dmabuf) Strides() iter.Seq[uint32] {
	return planeField(h, func(p *Plane) uint32 { return p.stride })
}

// Modifiers returns the plane modifiers in plane order.
func (h *Dmabuf) Modifiers() iter.Seq[Modifier] {
	return planeField(h, func(p *Plane) Modifier { return p.modifier })
}

func planeField[T any](h *Dmabuf, f func(*Plane) T) iter.Seq[T] {
	planes := h.desc().planes
	return func(yield func(T) bool) {
		for i := range planes {
			if !yield(f(&planes[i])) {
				return
			}
		}
	}
}

// HasModifier reports whether the buffer uses a vendor-specific modifier
// rather than an implicit or linear layout.
func (h *Dmabuf) HasModifier() bool {
	return h.desc().planes[0].modifier.IsExplicit()
}

// YInverted reports whether the buffer content is stored upside down.
func (h *Dmabuf) YInverted() bool {
	return h.desc().flags.Has(FlagYInvert)
}

// WeakDmabuf is a weak reference to a dmabuf. It observes the buffer
// without keeping its file descriptors open.
//
// WeakDmabuf values are comparable; == reports whether two weak references
// observe the same buffer. The zero value observes nothing and is gone.
type WeakDmabuf struct {
	d *descriptor
}

// Upgrade returns a new strong reference if the buffer is still alive,
// or nil once every strong reference has been released.
func (w WeakDmabuf) Upgrade() *Dmabuf {
	if w.d == nil || !w.d.tryRetain() {
		return nil
	}
	return newHandle(w.d)
}

// IsGone reports whether no strong references remain.
func (w WeakDmabuf) IsGone() bool {
	return w.d == nil || w.d.strong.Load() == 0
}

// ID returns the identifier of the observed buffer, matching Dmabuf.ID.
// The zero WeakDmabuf has ID 0.
func (w WeakDmabuf) ID() uint64 {
	if w.d == nil {
		return 0
	}
	return w.d.id
}
