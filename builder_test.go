package dmabuf

import (
	"slices"
	"testing"
)

func TestBuildWithoutPlanes(t *testing.T) {
	b := NewBuilder(Size{Width: 64, Height: 64}, ARGB8888, 0)
	if h := b.Build(); h != nil {
		t.Errorf("Build() with no planes = %v, want nil", h)
	}
}

func TestBuildSortsPlanes(t *testing.T) {
	tests := []struct {
		name  string
		order []uint32
	}{
		{"single", []uint32{0}},
		{"reversed", []uint32{3, 2, 1, 0}},
		{"shuffled", []uint32{2, 0, 1}},
		{"sparse", []uint32{7, 1, 4}},
		{"already sorted", []uint32{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := buildTestBuffer(t, Size{Width: 1920, Height: 1080}, ARGB8888, tt.order...)
			defer h.Release()

			var got []uint32
			for _, p := range h.Planes() {
				got = append(got, p.Index())
			}
			want := slices.Clone(tt.order)
			slices.Sort(want)
			if !slices.Equal(got, want) {
				t.Errorf("plane order = %v, want %v", got, want)
			}
			if h.NumPlanes() != len(tt.order) {
				t.Errorf("NumPlanes() = %d, want %d", h.NumPlanes(), len(tt.order))
			}

			// Offsets travel with their plane.
			var offsets []uint32
			for off := range h.Offsets() {
				offsets = append(offsets, off)
			}
			for i, off := range offsets {
				if off != want[i]*64 {
					t.Errorf("offset[%d] = %d, want %d", i, off, want[i]*64)
				}
			}
		})
	}
}

func TestBuildStableForEqualIndices(t *testing.T) {
	fds := []int{newTestFD(t), newTestFD(t), newTestFD(t)}
	b := NewBuilder(Size{Width: 8, Height: 8}, XRGB8888, 0)
	b.AddPlane(fds[0], 1, 0, 32, ModifierLinear)
	b.AddPlane(fds[1], 0, 0, 32, ModifierLinear)
	b.AddPlane(fds[2], 1, 0, 32, ModifierLinear)
	h := b.Build()
	defer h.Release()

	got := slices.Collect(h.Handles())
	want := []int{fds[1], fds[0], fds[2]}
	if !slices.Equal(got, want) {
		t.Errorf("Handles() = %v, want %v", got, want)
	}
}

func TestAddPlaneRejectsFifth(t *testing.T) {
	b := NewBuilder(Size{Width: 16, Height: 16}, ARGB8888, 0)
	for i := range uint32(MaxPlanes) {
		if !b.AddPlane(newTestFD(t), i, 0, 64, ModifierLinear) {
			t.Fatalf("AddPlane(%d) = false, want true", i)
		}
	}

	extra := newTestFD(t)
	if b.AddPlane(extra, 4, 0, 64, ModifierLinear) {
		t.Fatal("fifth AddPlane() = true, want false")
	}
	if b.Len() != MaxPlanes {
		t.Errorf("Len() = %d, want %d", b.Len(), MaxPlanes)
	}

	r := recordCloses(t)
	h := b.Build()
	if h.NumPlanes() != MaxPlanes {
		t.Errorf("NumPlanes() = %d, want %d", h.NumPlanes(), MaxPlanes)
	}
	h.Release()

	// The rejected descriptor still belongs to the caller.
	if r.count(extra) != 0 {
		t.Error("rejected descriptor was closed by the buffer")
	}
	closeFD(extra)
}

func TestBuilderSingleUse(t *testing.T) {
	b := NewBuilder(Size{Width: 16, Height: 16}, ARGB8888, 0)
	b.AddPlane(newTestFD(t), 0, 0, 64, ModifierLinear)
	h := b.Build()
	if h == nil {
		t.Fatal("Build() = nil")
	}
	defer h.Release()

	if again := b.Build(); again != nil {
		t.Error("second Build() should return nil")
	}

	fd := newTestFD(t)
	if b.AddPlane(fd, 1, 0, 64, ModifierLinear) {
		t.Error("AddPlane() after Build() = true, want false")
	}
	closeFD(fd)
}

func TestBuilderCloseReleasesPlanes(t *testing.T) {
	r := recordCloses(t)
	fds := []int{newTestFD(t), newTestFD(t)}

	b := NewBuilder(Size{Width: 16, Height: 16}, NV12, 0)
	b.AddPlane(fds[0], 0, 0, 16, ModifierLinear)
	b.AddPlane(fds[1], 1, 0, 16, ModifierLinear)
	b.Close()

	for _, fd := range fds {
		if r.count(fd) != 1 {
			t.Errorf("fd %d closed %d times, want 1", fd, r.count(fd))
		}
	}
	if h := b.Build(); h != nil {
		t.Error("Build() after Close() should return nil")
	}
	b.Close()
	if r.total() != len(fds) {
		t.Errorf("total closes = %d, want %d", r.total(), len(fds))
	}
}

type templateBuffer struct {
	size   Size
	format Format
}

func (b templateBuffer) Size() Size     { return b.size }
func (b templateBuffer) Format() Format { return b.format }

func TestBuilderFromBuffer(t *testing.T) {
	src := templateBuffer{
		size:   Size{Width: 320, Height: 200},
		format: Format{Code: ABGR8888, Modifier: 0x0100000000000002},
	}
	b := BuilderFromBuffer(src, FlagYInvert)
	b.AddPlane(newTestFD(t), 0, 0, 1280, ModifierLinear)
	h := b.Build()
	defer h.Release()

	if h.Size() != src.size {
		t.Errorf("Size() = %v, want %v", h.Size(), src.size)
	}
	// The code comes from the template, the modifier from the planes.
	want := Format{Code: ABGR8888, Modifier: ModifierLinear}
	if h.Format() != want {
		t.Errorf("Format() = %v, want %v", h.Format(), want)
	}
	if !h.YInverted() {
		t.Error("YInverted() = false, want true")
	}
}

func BenchmarkBuild(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		bld := NewBuilder(Size{Width: 64, Height: 64}, NV12, 0)
		bld.AddPlane(-1, 1, 0, 64, ModifierLinear)
		bld.AddPlane(-1, 0, 0, 64, ModifierLinear)
		h := bld.Build()
		// Keep the fake descriptors away from close.
		h.state.released.Store(true)
	}
}
