// Package cache keeps per-buffer resources keyed by dmabuf identity.
//
// Renderers import a dmabuf once (as a texture, an EGLImage, a framebuffer)
// and want to reuse the import for as long as the buffer lives, without
// the cache itself keeping the buffer open. ImportCache stores a
// dmabuf.WeakDmabuf next to each value: once every strong reference to the
// buffer is released the entry is stale, and Cleanup (or the next lookup)
// hands the value to the release callback.
//
//	textures := cache.New[*Texture](256, (*Texture).Destroy)
//	tex, err := textures.GetOrCreate(buf, importTexture)
//	...
//	textures.Cleanup() // once per frame
//
// When the cache grows past its soft limit, stale entries go first and
// then the least recently used quarter of the rest.
//
// ImportCache is safe for concurrent use and must not be copied.
package cache
