// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the boundary between dmabuf handles and the renderer
// that samples them.
//
// The renderer is a collaborator, not part of this module: it implements
// Importer to turn a dmabuf into a Texture on a GPU device the host
// application provides (DeviceHandle, an alias of gpucontext.DeviceProvider).
// This package supplies what both sides share:
//
//   - DescriptorFor: the texture descriptor matching a buffer's size and format
//   - CachingImporter: reuses one import per buffer for as long as the buffer
//     lives, destroying textures of released buffers on Cleanup
//
// # Usage
//
//	imp, err := render.NewCachingImporter(app.DeviceProvider(), newGPUImporter, 256)
//	if err != nil {
//	    return err
//	}
//	defer imp.Close()
//
//	for frame := range frames {
//	    tex, err := imp.ImportDmabuf(frame.Buffer)
//	    ...
//	    imp.Cleanup()
//	}
package render
