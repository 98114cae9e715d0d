package dmabuf

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Fourcc is a DRM four-character pixel format code.
// The characters are packed little-endian, so 'A','R','2','4' is ARGB8888.
type Fourcc uint32

// fourcc packs four characters into a Fourcc.
func fourcc(a, b, c, d byte) Fourcc {
	return Fourcc(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// Common DRM formats.
const (
	// ARGB8888 is [31:0] A:R:G:B 8:8:8:8 little endian.
	ARGB8888 Fourcc = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
	// XRGB8888 is [31:0] x:R:G:B 8:8:8:8 little endian.
	XRGB8888 Fourcc = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
	// ABGR8888 is [31:0] A:B:G:R 8:8:8:8 little endian.
	ABGR8888 Fourcc = 'A' | 'B'<<8 | '2'<<16 | '4'<<24
	// XBGR8888 is [31:0] x:B:G:R 8:8:8:8 little endian.
	XBGR8888 Fourcc = 'X' | 'B'<<8 | '2'<<16 | '4'<<24
	// ARGB2101010 is [31:0] A:R:G:B 2:10:10:10 little endian.
	ARGB2101010 Fourcc = 'A' | 'R'<<8 | '3'<<16 | '0'<<24
	// RGB565 is [15:0] R:G:B 5:6:5 little endian.
	RGB565 Fourcc = 'R' | 'G'<<8 | '1'<<16 | '6'<<24
	// R8 is a single 8-bit channel.
	R8 Fourcc = 'R' | '8'<<8 | ' '<<16 | ' '<<24
	// GR88 is [15:0] G:R 8:8 little endian.
	GR88 Fourcc = 'G' | 'R'<<8 | '8'<<16 | '8'<<24
	// NV12 is a 2-plane YCbCr 4:2:0 format with interleaved CbCr.
	NV12 Fourcc = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	// YUV420 is a 3-plane YCbCr 4:2:0 format.
	YUV420 Fourcc = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24
)

// FourccFromString parses a four-character code such as "XR24".
// Codes shorter than four characters are padded with spaces ("R8" becomes "R8  ").
func FourccFromString(s string) (Fourcc, error) {
	if len(s) == 0 || len(s) > 4 {
		return 0, fmt.Errorf("dmabuf: invalid fourcc %q", s)
	}
	b := [4]byte{' ', ' ', ' ', ' '}
	copy(b[:], s)
	return fourcc(b[0], b[1], b[2], b[3]), nil
}

// String returns the four characters of the code.
func (f Fourcc) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(f))
		}
	}
	return string(b)
}

// Modifier describes the tiling or compression layout of a plane.
// The upper 8 bits identify the vendor.
type Modifier uint64

const (
	// ModifierLinear is the plain row-major layout every driver understands.
	ModifierLinear Modifier = 0

	// ModifierInvalid means no explicit modifier was given; the layout is
	// implied by the driver that produced the buffer.
	ModifierInvalid Modifier = 0x00ffffffffffffff
)

// Vendor returns the vendor code in the top byte of the modifier.
func (m Modifier) Vendor() uint8 {
	return uint8(m >> 56)
}

// IsExplicit reports whether m is a vendor-specific layout, that is neither
// linear nor invalid.
func (m Modifier) IsExplicit() bool {
	return m != ModifierLinear && m != ModifierInvalid
}

// String returns a readable name for well-known modifiers and hex otherwise.
func (m Modifier) String() string {
	switch m {
	case ModifierLinear:
		return "Linear"
	case ModifierInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("0x%016x", uint64(m))
	}
}

// Format is a fourcc code paired with the modifier its planes use.
type Format struct {
	Code     Fourcc
	Modifier Modifier
}

// String returns "CODE/modifier".
func (f Format) String() string {
	return f.Code.String() + "/" + f.Modifier.String()
}

// TextureFormat returns the GPU texture format that samples this buffer
// directly, or gputypes.TextureFormatUndefined if there is none (multi-planar
// YUV, tiled layouts).
//
// DRM codes name channels from the most significant bit down, so the byte
// order in memory is reversed: ARGB8888 is B,G,R,A in memory.
func (f Format) TextureFormat() gputypes.TextureFormat {
	if f.Modifier.IsExplicit() {
		return gputypes.TextureFormatUndefined
	}
	switch f.Code {
	case ARGB8888, XRGB8888:
		return gputypes.TextureFormatBGRA8Unorm
	case ABGR8888, XBGR8888:
		return gputypes.TextureFormatRGBA8Unorm
	case ARGB2101010:
		return gputypes.TextureFormatRGB10A2Unorm
	case R8:
		return gputypes.TextureFormatR8Unorm
	case GR88:
		return gputypes.TextureFormatRG8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// Size is a buffer size in buffer-pixel coordinates.
type Size struct {
	Width  int
	Height int
}

// Extent returns the size as a single-layer gputypes.Extent3D.
// Negative dimensions are clamped to zero.
func (s Size) Extent() gputypes.Extent3D {
	return gputypes.NewExtent2D(uint32(max(s.Width, 0)), uint32(max(s.Height, 0))) //nolint:gosec // clamped
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Flags are per-buffer presentation flags.
type Flags uint32

const (
	// FlagYInvert marks buffer content stored upside down.
	FlagYInvert Flags = 1 << iota
	// FlagInterlaced marks interlaced content.
	FlagInterlaced
	// FlagBottomFirst marks interlaced content with the bottom field first.
	FlagBottomFirst
)

// Has reports whether all bits of other are set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// Buffer is anything with a size and a pixel format.
// Renderers consume buffers through this interface; allocators' native
// buffer types implement it too, which lets them serve as templates for
// BuilderFromBuffer.
type Buffer interface {
	// Size returns the buffer size in pixels.
	Size() Size

	// Format returns the fourcc code and modifier of the buffer.
	Format() Format
}
