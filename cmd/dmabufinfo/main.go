//go:build linux

// Command dmabufinfo allocates a buffer through a registered backend and
// prints its planes.
//
// Usage:
//
//	dmabufinfo -width 1920 -height 1080 -format XR24
//	dmabufinfo -format NV12 -modifier linear -fill 808080ff -v
//	dmabufinfo -config buffer.toml -v
//	dmabufinfo -list
//
// A config file sets the same values as the flags, plus memfd options:
//
//	backend = "memfd"
//	width = 1280
//	height = 720
//	format = "NV12"
//	modifiers = ["linear"]
//	fill = "808080ff"
//	memfd_name = "capture"
//	stride_alignment = 256
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/image/draw"

	"github.com/gogpu/dmabuf"
	"github.com/gogpu/dmabuf/allocator"
	"github.com/gogpu/dmabuf/allocator/memfd"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML file with allocation defaults")
		backend    = flag.String("backend", "", "allocator backend (default: best available)")
		width      = flag.Uint("width", 256, "buffer width")
		height     = flag.Uint("height", 256, "buffer height")
		format     = flag.String("format", "XR24", "DRM fourcc code")
		modifier   = flag.String("modifier", "", "acceptable modifier: linear, invalid or a number")
		fillHex    = flag.String("fill", "", "fill plane 0 with an RRGGBBAA color")
		list       = flag.Bool("list", false, "list registered backends and exit")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		dmabuf.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if *list {
		printBackends(os.Stdout)
		return
	}

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "width":
			cfg.Width, err = dimension("width", *width)
		case "height":
			cfg.Height, err = dimension("height", *height)
		case "format":
			cfg.Format, err = dmabuf.FourccFromString(*format)
		case "modifier":
			var m dmabuf.Modifier
			if m, err = parseModifier(*modifier); err == nil {
				cfg.Modifiers = []dmabuf.Modifier{m}
			}
		case "fill":
			cfg.Fill = *fillHex
		}
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := run(os.Stdout, cfg); err != nil {
		log.Fatal(err)
	}
}

// dimension converts a size flag, rejecting values that do not fit uint32.
func dimension(name string, v uint) (uint32, error) {
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("-%s %d out of range", name, v)
	}
	return uint32(v), nil
}

func run(w io.Writer, cfg config) error {
	alloc, err := newAllocator(cfg)
	if err != nil {
		return err
	}

	buf, err := alloc.CreateBuffer(cfg.Width, cfg.Height, cfg.Format, cfg.Modifiers)
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	defer buf.Release()

	if cfg.Fill != "" {
		c, err := parseColor(cfg.Fill)
		if err != nil {
			return err
		}
		if err := fill(buf, c); err != nil {
			return fmt.Errorf("fill: %w", err)
		}
	}

	printBuffer(w, buf)
	return nil
}

// newAllocator picks the best registered backend for the configured format. memfd options in the
// config bypass the registry and configure the backend directly.
func newAllocator(cfg config) (allocator.Allocator, error) {
	if cfg.MemfdName != "" || cfg.StrideAlignment != 0 {
		if cfg.Backend != "" && cfg.Backend != memfd.BackendName {
			return nil, fmt.Errorf("memfd options set for backend %q", cfg.Backend)
		}
		var opts []memfd.Option
		if cfg.MemfdName != "" {
			opts = append(opts, memfd.WithName(cfg.MemfdName))
		}
		if cfg.StrideAlignment != 0 {
			opts = append(opts, memfd.WithStrideAlignment(cfg.StrideAlignment))
		}
		return dmabuf.NewDmabufAllocator[*memfd.Buffer](memfd.New(opts...)), nil
	}
	if cfg.Backend == "" {
		return allocator.NewFor(cfg.Format, cfg.Modifiers)
	}
	return allocator.NewByName(cfg.Backend)
}

func printBackends(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRIORITY\tAVAILABLE")
	for _, name := range allocator.List() {
		e, ok := allocator.Get(name)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%t\n", e.Name, e.Priority, e.Available())
	}
	_ = tw.Flush()
}

func printBuffer(w io.Writer, buf *dmabuf.Dmabuf) {
	size := buf.Size()
	fmt.Fprintf(w, "size:    %dx%d\n", size.Width, size.Height)
	fmt.Fprintf(w, "format:  %v\n", buf.Format())
	fmt.Fprintf(w, "flags:   %s\n", flagNames(buf.Flags()))
	fmt.Fprintf(w, "planes:  %d\n", buf.NumPlanes())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  INDEX\tFD\tOFFSET\tSTRIDE\tMODIFIER")
	for _, p := range buf.Planes() {
		fmt.Fprintf(tw, "  %d\t%d\t%d\t%d\t%v\n", p.Index(), p.Fd(), p.Offset(), p.Stride(), p.Modifier())
	}
	_ = tw.Flush()
}

func flagNames(f dmabuf.Flags) string {
	var names []string
	if f.Has(dmabuf.FlagYInvert) {
		names = append(names, "y-invert")
	}
	if f.Has(dmabuf.FlagInterlaced) {
		names = append(names, "interlaced")
	}
	if f.Has(dmabuf.FlagBottomFirst) {
		names = append(names, "bottom-first")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

func parseModifier(s string) (dmabuf.Modifier, error) {
	switch strings.ToLower(s) {
	case "linear":
		return dmabuf.ModifierLinear, nil
	case "invalid":
		return dmabuf.ModifierInvalid, nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid modifier %q: %w", s, err)
	}
	return dmabuf.Modifier(v), nil
}

func parseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil //nolint:gosec // masked by uint8
}

var errNoPlanes = errors.New("buffer has no planes")

// fill maps plane 0 and paints it with c. Packed 32-bit formats get the
// color, single-channel and YUV formats get its luma.
func fill(buf *dmabuf.Dmabuf, c color.NRGBA) error {
	var plane *dmabuf.Plane
	for _, p := range buf.Planes() {
		plane = p
		break
	}
	if plane == nil {
		return errNoPlanes
	}

	m, err := memfd.MapPlane(buf, 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			dmabuf.Logger().Warn("dmabufinfo: unmap failed", "err", err)
		}
	}()

	size := buf.Size()
	stride := int(plane.Stride())
	data := m.Bytes()
	if int(plane.Offset())+stride*size.Height > len(data) {
		return fmt.Errorf("plane 0 does not fit in %d mapped bytes", len(data))
	}
	pix := data[plane.Offset():]
	rect := image.Rect(0, 0, size.Width, size.Height)

	var (
		dst draw.Image
		src color.Color = c
	)
	switch buf.Format().Code {
	case dmabuf.ABGR8888, dmabuf.XBGR8888:
		dst = &image.RGBA{Pix: pix, Stride: stride, Rect: rect}
	case dmabuf.ARGB8888, dmabuf.XRGB8888:
		// Bytes are B, G, R, A in memory.
		dst = &image.RGBA{Pix: pix, Stride: stride, Rect: rect}
		src = color.NRGBA{R: c.B, G: c.G, B: c.R, A: c.A}
	case dmabuf.R8, dmabuf.NV12, dmabuf.YUV420:
		dst = &image.Gray{Pix: pix, Stride: stride, Rect: rect}
	default:
		return fmt.Errorf("cannot fill format %v", buf.Format().Code)
	}

	draw.Draw(dst, rect, image.NewUniform(src), image.Point{}, draw.Src)
	dmabuf.Logger().Debug("dmabufinfo: filled plane", "index", plane.Index(), "bytes", stride*size.Height)
	return nil
}
