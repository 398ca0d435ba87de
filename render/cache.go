// SPDX-License-Identifier: Unlicense OR MIT

package render

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"sync"
)

// Cache suppresses redundant button writes: rendering is only worth
// doing (and the result only worth sending to a device) when the
// fingerprint of its inputs — icon path, background color, substituted
// text, draw config — has changed since the last render.
type Cache struct {
	mu         sync.Mutex
	byButton   map[cacheKey]string // last fingerprint rendered
	bufferPool sync.Pool           // reusable *image.RGBA canvases
}

type cacheKey struct {
	serial string
	button uint8
}

// NewCache builds an empty Cache. width/height size the pooled canvas
// buffers; callers rendering multiple button sizes should use one Cache
// per size.
func NewCache(width, height int) *Cache {
	return &Cache{
		byButton: make(map[cacheKey]string),
		bufferPool: sync.Pool{
			New: func() interface{} {
				return image.NewRGBA(image.Rect(0, 0, width, height))
			},
		},
	}
}

// Fingerprint hashes the render inputs into a short hex digest.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0}) // separator so "ab","c" can't collide with "a","bc"
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShouldRender reports whether serial/button's last-rendered fingerprint
// differs from fp, recording fp as the new baseline either way the
// caller decides to proceed. Call Invalidate if the caller chooses not
// to render after all (e.g. an error occurred upstream).
func (c *Cache) ShouldRender(serial string, button uint8, fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{serial, button}
	if c.byButton[key] == fp {
		return false
	}
	c.byButton[key] = fp
	return true
}

// Invalidate forgets serial/button's fingerprint, forcing the next
// ShouldRender call to report true regardless of fp. Used when building
// a button's render inputs failed and the button was cleared instead.
func (c *Cache) Invalidate(serial string, button uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byButton, cacheKey{serial, button})
}

// InvalidateDevice forgets every fingerprint for serial, used when a
// device reattaches and its screen contents can no longer be assumed to
// match what was last sent.
func (c *Cache) InvalidateDevice(serial string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.byButton {
		if key.serial == serial {
			delete(c.byButton, key)
		}
	}
}

// Acquire returns a canvas from the pool, cleared to transparent black.
func (c *Cache) Acquire() *image.RGBA {
	buf := c.bufferPool.Get().(*image.RGBA)
	for i := range buf.Pix {
		buf.Pix[i] = 0
	}
	return buf
}

// Release returns a canvas to the pool for reuse by the next render.
func (c *Cache) Release(buf *image.RGBA) {
	c.bufferPool.Put(buf)
}
