// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package allocator keeps a registry of dmabuf allocator backends.
//
// Backends register a factory under a name and priority, usually from an
// init function:
//
//	func init() {
//	    allocator.Register("gbm", 100, gbmFactory,
//	        allocator.ProbeAvailable("gbm", gbmFactory, dmabuf.XRGB8888))
//	}
//
// ProbeAvailable decides availability by actually allocating a small
// buffer once, which catches drivers that open but cannot export.
//
// Callers pick a backend by name, take the best available one, or ask for
// the best one that can allocate a given format:
//
//	a, err := allocator.NewFor(dmabuf.NV12, []dmabuf.Modifier{dmabuf.ModifierLinear})
//	buf, err := a.CreateBuffer(1920, 1080, dmabuf.NV12, []dmabuf.Modifier{dmabuf.ModifierLinear})
//	defer buf.Release()
//
// Every backend is exposed as an Allocator of *dmabuf.Dmabuf, typically a
// dmabuf.DmabufAllocator wrapping the backend's native allocator, so all
// backend errors arrive as *dmabuf.AnyError.
//
// Standard priorities:
//   - 100: hardware allocators (GBM, Vulkan)
//   - 50: EGL image export
//   - 10: software allocators (memfd)
package allocator
