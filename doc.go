// Package dmabuf provides reference-counted handles to dmabuf buffers and a
// uniform way to obtain them from any allocation backend.
//
// # Overview
//
// A dmabuf is GPU-shareable memory described by one to four planes, each an
// open file descriptor plus layout metadata (offset, stride, modifier).
// Buffers are passed between processes and devices by these descriptors, so
// closing one too early or twice corrupts shared GPU state. This package
// owns that lifetime:
//
//   - Builder collects planes and produces an immutable buffer
//   - Dmabuf is a strong reference; the last Release closes the descriptors
//   - WeakDmabuf observes a buffer without keeping it open
//
// # Quick Start
//
//	b := dmabuf.NewBuilder(dmabuf.Size{Width: 256, Height: 256}, dmabuf.XRGB8888, 0)
//	b.AddPlane(fd, 0, 0, 1024, dmabuf.ModifierLinear)
//	buf := b.Build()
//	defer buf.Release()
//
//	other := buf.Clone() // shares the descriptors
//	w := buf.Weak()      // does not keep them open
//
// # Allocators
//
// Backends implement Allocator for their native buffer type. When that type
// also implements Exporter, DmabufAllocator turns the backend into an
// Allocator of *Dmabuf whose errors are all *AnyError:
//
//	alloc := dmabuf.NewDmabufAllocator[*memfd.Buffer](memfd.New())
//	buf, err := alloc.CreateBuffer(640, 480, dmabuf.ARGB8888, nil)
//
// The allocator sub-package keeps a registry of such allocators, and
// allocator/memfd is a software backend for Linux.
//
// # Identity
//
// Handles compare by identity, not content. Two buffers built from the same
// metadata are different buffers because their descriptors differ. Use
// Dmabuf.ID or WeakDmabuf (which is comparable) as map keys.
//
// # Thread Safety
//
// A built buffer is immutable, so handles can be read from any goroutine.
// Reference counts are atomic: exactly one Release closes the descriptors,
// and WeakDmabuf.Upgrade never revives a released buffer. Builders are not
// safe for concurrent use.
package dmabuf
