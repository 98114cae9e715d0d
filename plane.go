package dmabuf

import (
	"golang.org/x/sys/unix"
)

// MaxPlanes is the maximum number of planes a Dmabuf can carry.
const MaxPlanes = 4

// closeFD closes a plane descriptor. Tests replace it to observe closes.
var closeFD = unix.Close

// Plane is one memory region of a buffer: an owned file descriptor plus
// the layout of the plane inside it.
type Plane struct {
	fd       int
	index    uint32
	offset   uint32
	stride   uint32
	modifier Modifier
}

// Fd returns the plane's descriptor. It stays owned by the buffer and
// must not be closed by the caller.
func (p *Plane) Fd() int { return p.fd }

// Index returns the plane index the producer assigned.
func (p *Plane) Index() uint32 { return p.index }

// Offset returns the byte offset of the plane inside its descriptor.
func (p *Plane) Offset() uint32 { return p.offset }

// Stride returns the number of bytes per row.
func (p *Plane) Stride() uint32 { return p.stride }

// Modifier returns the plane's layout modifier.
func (p *Plane) Modifier() Modifier { return p.modifier }

// closePlanes closes the descriptor of every plane. All planes are closed
// even if some fail; the failures are logged.
func closePlanes(planes []Plane) {
	for i := range planes {
		if err := closeFD(planes[i].fd); err != nil {
			Logger().Warn("dmabuf: close plane fd failed",
				"fd", planes[i].fd, "plane", planes[i].index, "err", err)
		}
	}
}
