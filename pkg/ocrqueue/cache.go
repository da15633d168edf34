package ocrqueue

import (
	"sync"

	"github.com/eequaled/recall/pkg/segstore"
)

// PixelCache is the in-memory per-frame pixel buffer cache FrameIngestor
// populates and OcrQueue workers drain, avoiding a re-read from the
// still-fragmented video tail for a frame that was just appended. Owned
// by OcrQueue per spec; entries are removed on first use by a worker.
type PixelCache struct {
	mu      sync.Mutex
	entries map[int64]segstore.PixelBuffer
}

// NewPixelCache returns an empty cache.
func NewPixelCache() *PixelCache {
	return &PixelCache{entries: make(map[int64]segstore.PixelBuffer)}
}

// Put stores pixels for frameID, overwriting any existing entry.
func (c *PixelCache) Put(frameID int64, pixels segstore.PixelBuffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[frameID] = pixels
}

// Take returns and removes the cached pixels for frameID, if present.
func (c *PixelCache) Take(frameID int64) (segstore.PixelBuffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[frameID]
	if ok {
		delete(c.entries, frameID)
	}
	return p, ok
}

// Len reports the current number of cached entries, for health/backpressure reporting.
func (c *PixelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
