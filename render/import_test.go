// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"golang.org/x/sys/unix"

	"github.com/gogpu/dmabuf"
)

type fakeTexture struct {
	desc      TextureDescriptor
	destroyed int
}

func (t *fakeTexture) Width() uint32                  { return t.desc.Size.Width }
func (t *fakeTexture) Height() uint32                 { return t.desc.Size.Height }
func (t *fakeTexture) Format() gputypes.TextureFormat { return t.desc.Format }
func (t *fakeTexture) Destroy()                       { t.destroyed++ }

// fakeImporter describes each buffer and records the textures it made.
type fakeImporter struct {
	dev      DeviceHandle
	mu       sync.Mutex
	imported []*fakeTexture
	err      error
}

func (f *fakeImporter) ImportDmabuf(buf *dmabuf.Dmabuf) (Texture, error) {
	if f.err != nil {
		return nil, f.err
	}
	desc, err := DescriptorFor(buf, TextureUsageTextureBinding)
	if err != nil {
		return nil, err
	}
	tex := &fakeTexture{desc: desc}
	f.mu.Lock()
	f.imported = append(f.imported, tex)
	f.mu.Unlock()
	return tex, nil
}

// newImporter returns a CachingImporter over inner on the null device.
func newImporter(t *testing.T, inner *fakeImporter) *CachingImporter {
	t.Helper()
	imp, err := NewCachingImporter(NullDeviceHandle{}, func(dev DeviceHandle) (Importer, error) {
		inner.dev = dev
		return inner, nil
	}, 0)
	if err != nil {
		t.Fatalf("NewCachingImporter() error = %v", err)
	}
	return imp
}

func newBuffer(t *testing.T) *dmabuf.Dmabuf {
	t.Helper()
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	_ = unix.Close(p[1])
	b := dmabuf.NewBuilder(dmabuf.Size{Width: 64, Height: 32}, dmabuf.XRGB8888, 0)
	b.AddPlane(p[0], 0, 0, 256, dmabuf.ModifierLinear)
	return b.Build()
}

func TestCachingImporterReuses(t *testing.T) {
	inner := &fakeImporter{}
	imp := newImporter(t, inner)
	defer imp.Close()

	if inner.dev != (NullDeviceHandle{}) {
		t.Error("importer should be created for the caching importer's device")
	}

	buf := newBuffer(t)
	defer buf.Release()

	first, err := imp.ImportDmabuf(buf)
	if err != nil {
		t.Fatalf("ImportDmabuf() error = %v", err)
	}
	if first.Width() != 64 || first.Height() != 32 {
		t.Errorf("texture size = %dx%d, want 64x32", first.Width(), first.Height())
	}

	// A clone is the same buffer and hits the cache.
	clone := buf.Clone()
	defer clone.Release()
	second, err := imp.ImportDmabuf(clone)
	if err != nil {
		t.Fatalf("ImportDmabuf() error = %v", err)
	}
	if first != second {
		t.Error("second import should return the cached texture")
	}
	if len(inner.imported) != 1 {
		t.Errorf("inner importer called %d times, want 1", len(inner.imported))
	}
	if s := imp.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit and 1 miss", s)
	}
}

func TestCachingImporterCleanup(t *testing.T) {
	inner := &fakeImporter{}
	imp := newImporter(t, inner)
	defer imp.Close()

	gone := newBuffer(t)
	alive := newBuffer(t)
	defer alive.Release()

	if _, err := imp.ImportDmabuf(gone); err != nil {
		t.Fatal(err)
	}
	if _, err := imp.ImportDmabuf(alive); err != nil {
		t.Fatal(err)
	}
	gone.Release()

	if n := imp.Cleanup(); n != 1 {
		t.Errorf("Cleanup() = %d, want 1", n)
	}
	if imp.Len() != 1 {
		t.Errorf("Len() = %d, want 1", imp.Len())
	}
	if inner.imported[0].destroyed != 1 {
		t.Error("texture of the released buffer should be destroyed")
	}
	if inner.imported[1].destroyed != 0 {
		t.Error("texture of the live buffer should survive")
	}
}

func TestCachingImporterForgetAndClose(t *testing.T) {
	inner := &fakeImporter{}
	imp := newImporter(t, inner)

	a := newBuffer(t)
	defer a.Release()
	b := newBuffer(t)
	defer b.Release()

	_, _ = imp.ImportDmabuf(a)
	_, _ = imp.ImportDmabuf(b)

	if !imp.Forget(a) {
		t.Error("Forget() = false for a cached buffer")
	}
	if imp.Forget(a) {
		t.Error("second Forget() = true")
	}
	if inner.imported[0].destroyed != 1 {
		t.Error("Forget() should destroy the texture")
	}

	imp.Close()
	if inner.imported[1].destroyed != 1 {
		t.Error("Close() should destroy remaining textures")
	}
	if imp.Len() != 0 {
		t.Errorf("Len() after Close() = %d, want 0", imp.Len())
	}
}

func TestCachingImporterError(t *testing.T) {
	errImport := errors.New("import failed")
	imp := newImporter(t, &fakeImporter{err: errImport})
	defer imp.Close()

	buf := newBuffer(t)
	defer buf.Release()

	if _, err := imp.ImportDmabuf(buf); !errors.Is(err, errImport) {
		t.Errorf("ImportDmabuf() error = %v, want %v", err, errImport)
	}
	if imp.Len() != 0 {
		t.Error("failed imports should not be cached")
	}
}

func TestNewCachingImporterDevice(t *testing.T) {
	var dev DeviceHandle = NullDeviceHandle{}
	var got DeviceHandle
	imp, err := NewCachingImporter(dev, func(d DeviceHandle) (Importer, error) {
		got = d
		return &fakeImporter{}, nil
	}, 8)
	if err != nil {
		t.Fatalf("NewCachingImporter() error = %v", err)
	}
	defer imp.Close()

	if got != dev || imp.Device() != dev {
		t.Error("factory and Device() should see the caller's device")
	}
	if info := imp.AdapterInfo(); info != dev.AdapterInfo() {
		t.Errorf("AdapterInfo() = %+v, want %+v", info, dev.AdapterInfo())
	}
	if imp.Stats().Capacity != 8 {
		t.Errorf("Capacity = %d, want 8", imp.Stats().Capacity)
	}
}

func TestNewCachingImporterErrors(t *testing.T) {
	never := func(DeviceHandle) (Importer, error) {
		t.Error("factory called without a device")
		return nil, nil
	}
	if _, err := NewCachingImporter(nil, never, 0); !errors.Is(err, ErrNoDevice) {
		t.Errorf("NewCachingImporter(nil) error = %v, want ErrNoDevice", err)
	}

	errOpen := errors.New("no dmabuf import extension")
	_, err := NewCachingImporter(NullDeviceHandle{}, func(DeviceHandle) (Importer, error) {
		return nil, errOpen
	}, 0)
	if !errors.Is(err, errOpen) {
		t.Errorf("NewCachingImporter() error = %v, want %v", err, errOpen)
	}
}
