// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/dmabuf"
	"github.com/gogpu/dmabuf/cache"
)

// Importer turns dmabufs into textures. Renderers implement it.
//
// The returned texture must stay valid after buf is released; drivers keep
// their own reference to the imported memory.
type Importer interface {
	ImportDmabuf(buf *dmabuf.Dmabuf) (Texture, error)
}

// ErrNoDevice is returned when an importer is created without a device.
var ErrNoDevice = errors.New("render: no device")

// ImporterFactory creates an Importer that imports into dev.
type ImporterFactory func(dev DeviceHandle) (Importer, error)

// CachingImporter imports each buffer once and reuses the texture for as
// long as the buffer lives. It holds buffers weakly: releasing the last
// handle makes the texture stale, and Cleanup destroys it.
//
// CachingImporter is safe for concurrent use.
type CachingImporter struct {
	dev      DeviceHandle
	adapter  gpucontext.AdapterInfo
	importer Importer
	textures *cache.ImportCache[Texture]
}

// NewCachingImporter creates the importer for dev with newImporter and
// caches its results. softLimit bounds the number of cached textures
// (0 means unlimited).
func NewCachingImporter(dev DeviceHandle, newImporter ImporterFactory, softLimit int) (*CachingImporter, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	importer, err := newImporter(dev)
	if err != nil {
		return nil, fmt.Errorf("render: create importer: %w", err)
	}

	info := dev.AdapterInfo()
	dmabuf.Logger().Debug("render: dmabuf importer ready",
		"adapter", info.Name, "type", info.Type.String(), "soft_limit", softLimit)

	return &CachingImporter{
		dev:      dev,
		adapter:  info,
		importer: importer,
		textures: cache.New(softLimit, destroyTexture),
	}, nil
}

// Device returns the device textures are imported into.
func (c *CachingImporter) Device() DeviceHandle {
	return c.dev
}

// AdapterInfo returns the adapter of the device, read once at creation.
func (c *CachingImporter) AdapterInfo() gpucontext.AdapterInfo {
	return c.adapter
}

// ImportDmabuf returns the cached texture for buf, importing it on first use.
func (c *CachingImporter) ImportDmabuf(buf *dmabuf.Dmabuf) (Texture, error) {
	return c.textures.GetOrCreate(buf, c.importer.ImportDmabuf)
}

// Forget destroys the texture cached for buf, if any.
func (c *CachingImporter) Forget(buf *dmabuf.Dmabuf) bool {
	return c.textures.Delete(buf)
}

// Cleanup destroys textures whose buffers are gone and returns their count.
// Call it once per frame.
func (c *CachingImporter) Cleanup() int {
	return c.textures.Cleanup()
}

// Len returns the number of cached textures.
func (c *CachingImporter) Len() int {
	return c.textures.Len()
}

// Stats returns cache statistics.
func (c *CachingImporter) Stats() cache.Stats {
	return c.textures.Stats()
}

// Close destroys every cached texture.
func (c *CachingImporter) Close() {
	c.textures.Clear()
}

func destroyTexture(t Texture) {
	if t != nil {
		t.Destroy()
	}
}

var _ Importer = (*CachingImporter)(nil)
