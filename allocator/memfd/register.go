//go:build linux

package memfd

import (
	"github.com/gogpu/dmabuf"
	"github.com/gogpu/dmabuf/allocator"
)

// BackendName is the registry name of this backend.
const BackendName = "memfd"

// init registers the memfd backend. It is available when the kernel
// supports memfd_create with sealing.
func init() {
	factory := func() (allocator.Allocator, error) {
		return dmabuf.NewDmabufAllocator[*Buffer](New()), nil
	}
	allocator.Register(BackendName, 10, factory, allocator.ProbeAvailable(BackendName, factory, dmabuf.XRGB8888))
}
