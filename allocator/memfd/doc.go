//go:build linux

// Package memfd is a software dmabuf allocator backed by sealed memfd
// files.
//
// Buffers live in ordinary shared memory, so they can be mapped and filled
// by the CPU, passed to other processes over a Unix socket, or turned into
// real dmabufs by the udmabuf driver. Every layout is linear.
//
// The backend registers itself with the allocator registry as "memfd"
// (priority 10):
//
//	import _ "github.com/gogpu/dmabuf/allocator/memfd"
//
//	a, err := allocator.NewByName("memfd")
//
// It can also be used directly, which gives access to the native Buffer:
//
//	a := memfd.New()
//	buf, err := a.CreateBuffer(640, 480, dmabuf.XRGB8888, nil)
//	m, err := buf.Map()
//	copy(m.Bytes(), pixels)
//	d, err := buf.Export()
package memfd
