//go:build linux

package memfd

import (
	"github.com/gogpu/dmabuf"
)

// planeSpec describes one plane of a format relative to the buffer size.
type planeSpec struct {
	bytesPerPixel int
	// hsub and vsub are the horizontal and vertical subsampling factors.
	hsub, vsub int
}

// formats lists the supported formats and their planes.
var formats = map[dmabuf.Fourcc][]planeSpec{
	dmabuf.ARGB8888:    {{4, 1, 1}},
	dmabuf.XRGB8888:    {{4, 1, 1}},
	dmabuf.ABGR8888:    {{4, 1, 1}},
	dmabuf.XBGR8888:    {{4, 1, 1}},
	dmabuf.ARGB2101010: {{4, 1, 1}},
	dmabuf.RGB565:      {{2, 1, 1}},
	dmabuf.GR88:        {{2, 1, 1}},
	dmabuf.R8:          {{1, 1, 1}},
	dmabuf.NV12:        {{1, 1, 1}, {2, 2, 2}},
	dmabuf.YUV420:      {{1, 1, 1}, {1, 2, 2}, {1, 2, 2}},
}

// Supported reports whether the allocator can create buffers of format.
func Supported(format dmabuf.Fourcc) bool {
	_, ok := formats[format]
	return ok
}

// planeLayout is the placement of one plane inside the memfd.
type planeLayout struct {
	offset uint32
	stride uint32
	rows   uint32
}

// computeLayout places the planes of format back to back, each row padded
// to align bytes. It returns the layouts and the total size.
func computeLayout(width, height uint32, specs []planeSpec, align uint32) ([]planeLayout, int64) {
	layouts := make([]planeLayout, len(specs))
	var offset int64
	for i, s := range specs {
		cols := ceilDiv(width, uint32(s.hsub)) //nolint:gosec // small constants
		rows := ceilDiv(height, uint32(s.vsub)) //nolint:gosec // small constants
		stride := alignUp(cols*uint32(s.bytesPerPixel), align) //nolint:gosec // small constants
		layouts[i] = planeLayout{
			offset: uint32(offset), //nolint:gosec // bounded by maxBufferSize
			stride: stride,
			rows:   rows,
		}
		offset += int64(stride) * int64(rows)
	}
	return layouts, offset
}

func ceilDiv(v, d uint32) uint32 {
	return (v + d - 1) / d
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
