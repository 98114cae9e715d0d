// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/dmabuf"
)

// Errors returned when describing buffers.
var (
	// ErrUnsupportedFormat is returned when a buffer format has no
	// single-plane texture equivalent.
	ErrUnsupportedFormat = errors.New("render: unsupported buffer format")

	// ErrInvalidSize is returned for buffers without area.
	ErrInvalidSize = errors.New("render: invalid buffer size")
)

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g. gogpu.App) owns the device; importers receive it rather
// than creating their own, so imported buffers and the host's rendering
// share one device.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider.
type DeviceHandle = gpucontext.DeviceProvider

// TextureDescriptor describes parameters for creating a texture.
// This mirrors the WebGPU GPUTextureDescriptor specification.
type TextureDescriptor struct {
	// Label is an optional debug label for the texture.
	Label string

	// Size is the texture extent.
	Size gputypes.Extent3D

	// MipLevelCount is the number of mipmap levels.
	MipLevelCount uint32

	// SampleCount is the number of samples for multisampling.
	SampleCount uint32

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// TextureUsage specifies how a texture can be used.
// These flags can be combined with bitwise OR.
type TextureUsage uint32

const (
	// TextureUsageCopySrc allows the texture to be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << iota

	// TextureUsageCopyDst allows the texture to be used as a copy destination.
	TextureUsageCopyDst

	// TextureUsageTextureBinding allows the texture to be used in a texture binding.
	TextureUsageTextureBinding

	// TextureUsageStorageBinding allows the texture to be used in a storage binding.
	TextureUsageStorageBinding

	// TextureUsageRenderAttachment allows the texture to be used as a render attachment.
	TextureUsageRenderAttachment
)

// Texture is a GPU texture created from a dmabuf.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() uint32

	// Height returns the texture height in pixels.
	Height() uint32

	// Format returns the texture pixel format.
	Format() gputypes.TextureFormat

	// Destroy releases GPU resources associated with this texture.
	Destroy()
}

// DescriptorFor returns the descriptor of a texture that samples buf
// directly. The label is the buffer's format.
func DescriptorFor(buf dmabuf.Buffer, usage TextureUsage) (TextureDescriptor, error) {
	size := buf.Size()
	if size.Empty() {
		return TextureDescriptor{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, size.Width, size.Height)
	}
	format := buf.Format()
	texFormat := format.TextureFormat()
	if texFormat == gputypes.TextureFormatUndefined {
		return TextureDescriptor{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	return TextureDescriptor{
		Label:         format.String(),
		Size:          size.Extent(),
		MipLevelCount: 1,
		SampleCount:   1,
		Format:        texFormat,
		Usage:         usage,
	}, nil
}

// NullDeviceHandle is a DeviceHandle without a device.
// Used for CPU-only importers and tests.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo reports an unknown adapter.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "null", Type: gpucontext.AdapterTypeUnknown}
}

// Ensure NullDeviceHandle implements DeviceHandle.
var _ DeviceHandle = NullDeviceHandle{}
