package dmabuf

import (
	"errors"
	"testing"
)

var (
	errAllocSentinel  = errors.New("mock: out of memory")
	errExportSentinel = errors.New("mock: export failed")
)

// mockBuffer is a backend-native buffer for the adapter tests.
type mockBuffer struct {
	t         *testing.T
	exportErr error
	closed    int
	size      Size
	format    Fourcc
}

func (b *mockBuffer) Export() (*Dmabuf, error) {
	if b.exportErr != nil {
		return nil, b.exportErr
	}
	bld := NewBuilder(b.size, b.format, 0)
	bld.AddPlane(newTestFD(b.t), 0, 0, uint32(b.size.Width*4), ModifierLinear) //nolint:gosec // test sizes are small
	return bld.Build(), nil
}

func (b *mockBuffer) Close() error {
	b.closed++
	return nil
}

// mockAllocator records its last request and hands out mockBuffers.
type mockAllocator struct {
	t         *testing.T
	allocErr  error
	exportErr error
	last      *mockBuffer
	modifiers []Modifier
}

func (a *mockAllocator) CreateBuffer(width, height uint32, format Fourcc, modifiers []Modifier) (*mockBuffer, error) {
	a.modifiers = modifiers
	if a.allocErr != nil {
		return nil, a.allocErr
	}
	a.last = &mockBuffer{
		t:         a.t,
		exportErr: a.exportErr,
		size:      Size{Width: int(width), Height: int(height)},
		format:    format,
	}
	return a.last, nil
}

func TestDmabufAllocatorSuccess(t *testing.T) {
	backend := &mockAllocator{t: t}
	alloc := NewDmabufAllocator[*mockBuffer](backend)

	mods := []Modifier{ModifierLinear}
	buf, err := alloc.CreateBuffer(640, 480, ARGB8888, mods)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	defer buf.Release()

	if buf.Size() != (Size{Width: 640, Height: 480}) {
		t.Errorf("Size() = %v", buf.Size())
	}
	if buf.Format().Code != ARGB8888 {
		t.Errorf("Format().Code = %v, want ARGB8888", buf.Format().Code)
	}
	if len(backend.modifiers) != 1 || backend.modifiers[0] != ModifierLinear {
		t.Errorf("backend got modifiers %v", backend.modifiers)
	}
	if backend.last.closed != 1 {
		t.Errorf("backend buffer closed %d times, want 1", backend.last.closed)
	}
	if alloc.Backend() != Allocator[*mockBuffer](backend) {
		t.Error("Backend() should return the wrapped allocator")
	}
}

func TestDmabufAllocatorAllocError(t *testing.T) {
	alloc := NewDmabufAllocator[*mockBuffer](&mockAllocator{t: t, allocErr: errAllocSentinel})

	buf, err := alloc.CreateBuffer(64, 64, ARGB8888, nil)
	if buf != nil {
		t.Error("CreateBuffer() should not return a buffer on failure")
	}

	var anyErr *AnyError
	if !errors.As(err, &anyErr) {
		t.Fatalf("error %T is not *AnyError", err)
	}
	if anyErr.Unwrap() != errAllocSentinel {
		t.Errorf("Unwrap() = %v, want %v", anyErr.Unwrap(), errAllocSentinel)
	}
	if !errors.Is(err, errAllocSentinel) {
		t.Error("errors.Is should find the allocation error")
	}
	if err.Error() != errAllocSentinel.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), errAllocSentinel.Error())
	}
}

func TestDmabufAllocatorExportError(t *testing.T) {
	backend := &mockAllocator{t: t, exportErr: errExportSentinel}
	alloc := NewDmabufAllocator[*mockBuffer](backend)

	_, err := alloc.CreateBuffer(64, 64, ARGB8888, nil)

	var anyErr *AnyError
	if !errors.As(err, &anyErr) {
		t.Fatalf("error %T is not *AnyError", err)
	}
	if anyErr.Unwrap() != errExportSentinel {
		t.Errorf("Unwrap() = %v, want %v", anyErr.Unwrap(), errExportSentinel)
	}
	// A failed export still disposes of the backend buffer.
	if backend.last.closed != 1 {
		t.Errorf("backend buffer closed %d times, want 1", backend.last.closed)
	}
}

type wrappedErr struct{ cause error }

func (e *wrappedErr) Error() string { return "backend: " + e.cause.Error() }
func (e *wrappedErr) Unwrap() error { return e.cause }

func TestAnyErrorKeepsChain(t *testing.T) {
	root := errors.New("ENOMEM")
	alloc := NewDmabufAllocator[*mockBuffer](&mockAllocator{t: t, allocErr: &wrappedErr{cause: root}})

	_, err := alloc.CreateBuffer(1, 1, R8, nil)
	if !errors.Is(err, root) {
		t.Error("errors.Is should walk through AnyError to the root cause")
	}
	var we *wrappedErr
	if !errors.As(err, &we) {
		t.Error("errors.As should find the backend error type")
	}
	if err.Error() != "backend: ENOMEM" {
		t.Errorf("Error() = %q", err.Error())
	}
}

// dmabufBackend allocates buffers that already are Dmabufs.
type dmabufBackend struct {
	t    *testing.T
	last *Dmabuf
}

func (a *dmabufBackend) CreateBuffer(width, height uint32, format Fourcc, _ []Modifier) (*Dmabuf, error) {
	b := NewBuilder(Size{Width: int(width), Height: int(height)}, format, 0)
	b.AddPlane(newTestFD(a.t), 0, 0, width*4, ModifierLinear)
	a.last = b.Build()
	return a.last, nil
}

func TestDmabufAllocatorOverDmabuf(t *testing.T) {
	r := recordCloses(t)
	backend := &dmabufBackend{t: t}
	alloc := NewDmabufAllocator[*Dmabuf](backend)

	buf, err := alloc.CreateBuffer(16, 16, XRGB8888, nil)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if !buf.Equal(backend.last) {
		t.Error("exporting a Dmabuf should yield the same buffer")
	}
	if !backend.last.Released() {
		t.Error("the backend's own handle should be released by the adapter")
	}

	buf.Release()
	if r.total() != 1 {
		t.Errorf("total closes = %d, want 1", r.total())
	}
}

func TestAnyErrorZeroValue(t *testing.T) {
	var e AnyError
	if e.Error() == "" {
		t.Error("zero AnyError should still describe itself")
	}
	if e.Unwrap() != nil {
		t.Errorf("zero AnyError Unwrap() = %v, want nil", e.Unwrap())
	}

	var wrapped error = &AnyError{}
	if errors.Is(wrapped, errAllocSentinel) {
		t.Error("zero AnyError should not match unrelated errors")
	}
}

func TestNewAnyError(t *testing.T) {
	if NewAnyError(nil) != nil {
		t.Error("NewAnyError(nil) should be nil")
	}
	e := NewAnyError(errExportSentinel)
	if !errors.Is(e, errExportSentinel) || e.Error() != errExportSentinel.Error() {
		t.Errorf("NewAnyError() = %v, want wrapping %v", e, errExportSentinel)
	}
}
