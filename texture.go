/*
Copyright 2024 Henri Remonen

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package web0

// TextureHandle identifies a texture owned by a TextureAllocator.
type TextureHandle uint64

// TextureAllocator is the platform texture subsystem.
type TextureAllocator interface {
	// Allocate uploads img and returns a handle to the new texture.
	Allocate(img *PixelBuffer) TextureHandle
	// Release frees the texture. The handle must not be used afterwards.
	Release(h TextureHandle)
}

// TextureSlot holds at most one texture, tagged with the URL its image was
// decoded from.
//
// The slot is keyed by URL only: a URL that serves a different image on a
// later fetch keeps showing the first texture until a different URL is
// displayed. Callers that want a fresh image put a cache-busting value in
// the URL, as the random image preset does with its seed.
//
// TextureSlot is not safe for concurrent use; it belongs to the render loop.
type TextureSlot struct {
	allocator TextureAllocator
	url       string
	handle    TextureHandle
	held      bool
}

// NewTextureSlot creates an empty slot backed by allocator.
func NewTextureSlot(allocator TextureAllocator) *TextureSlot {
	return &TextureSlot{allocator: allocator}
}

// Ensure returns the texture for url, allocating it from img only when the
// slot holds nothing or holds a texture for another URL. The previous texture
// is released before the new one is allocated.
func (s *TextureSlot) Ensure(url string, img *PixelBuffer) TextureHandle {
	if s.held && s.url == url {
		return s.handle
	}

	s.Release()

	s.handle = s.allocator.Allocate(img)
	s.url = url
	s.held = true

	return s.handle
}

// Release frees the held texture, if any.
func (s *TextureSlot) Release() {
	if !s.held {
		return
	}

	s.allocator.Release(s.handle)
	s.handle = 0
	s.url = ""
	s.held = false
}

// URL returns the URL of the held texture and whether one is held.
func (s *TextureSlot) URL() (string, bool) {
	return s.url, s.held
}
