// Package clipreader resolves asset URIs to decoded frames: VFR→CFR
// normalization, procedural LIGM synthesis, and three bounded caches
// (frame, still, decoder-state), all honoring a process-wide
// memory-pressure signal by trimming to configured minimums.
package clipreader

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/timecode"
)

// MemoryPressurePolicy bounds each cache tier. Trim drops every cache
// to these values (or clears a tier entirely when its field is zero or
// negative); it is the synchronous reaction to a memory-pressure
// broadcast, never a background sweep.
type MemoryPressurePolicy struct {
	FrameEntries   int
	StillBytes     int64
	DecoderEntries int
}

// DefaultPolicy matches the spec's defaults: 24 frame-cache entries,
// an implementation-chosen still budget, and a small decoder pool.
var DefaultPolicy = MemoryPressurePolicy{
	FrameEntries:   24,
	StillBytes:     64 << 20,
	DecoderEntries: 8,
}

// frameKey identifies one decoded (non-still) frame.
type frameKey struct {
	AssetID     string
	SourceTicks int64
	Width       int
	Height      int
}

// FrameCache is an LRU cache of decoded video frames, bounded by entry
// count (default 24, per §4.3).
type FrameCache struct {
	mu     sync.Mutex
	bound  int
	ll     *list.List // front = most recently used
	lookup map[frameKey]*list.Element
}

type frameEntry struct {
	key   frameKey
	frame decode.Frame
}

func NewFrameCache(bound int) *FrameCache {
	return &FrameCache{bound: bound, ll: list.New(), lookup: make(map[frameKey]*list.Element)}
}

func (c *FrameCache) Get(k frameKey) (decode.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.lookup[k]
	if !ok {
		return decode.Frame{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*frameEntry).frame, true
}

func (c *FrameCache) Put(k frameKey, f decode.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.lookup[k]; ok {
		el.Value.(*frameEntry).frame = f
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&frameEntry{key: k, frame: f})
	c.lookup[k] = el
	c.evictOverBound()
}

func (c *FrameCache) evictOverBound() {
	for c.bound > 0 && c.ll.Len() > c.bound {
		back := c.ll.Back()
		if back == nil {
			return
		}
		c.ll.Remove(back)
		delete(c.lookup, back.Value.(*frameEntry).key)
	}
}

// Trim lowers the bound to policy.FrameEntries and evicts down to it. A
// non-positive value clears the cache entirely rather than leaving it
// unbounded.
func (c *FrameCache) Trim(policy MemoryPressurePolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if policy.FrameEntries <= 0 {
		c.ll.Init()
		c.lookup = make(map[frameKey]*list.Element)
		return
	}
	c.bound = policy.FrameEntries
	c.evictOverBound()
}

// Clear drops every entry; the current bound is kept.
func (c *FrameCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.lookup = make(map[frameKey]*list.Element)
}

func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// stillKey identifies a decoded still image (EXR/FITS/PNG/JPEG).
type stillKey struct {
	AssetID string
	Width   int
	Height  int
}

// StillCache bounds decoded stills by an approximate byte budget
// rather than entry count, since stills vary wildly in resolution.
type StillCache struct {
	mu         sync.Mutex
	budget     int64
	used       int64
	ll         *list.List
	lookup     map[stillKey]*list.Element
}

type stillEntry struct {
	key   stillKey
	frame decode.Frame
	bytes int64
}

func NewStillCache(budget int64) *StillCache {
	return &StillCache{budget: budget, ll: list.New(), lookup: make(map[stillKey]*list.Element)}
}

func frameByteSize(f decode.Frame) int64 {
	return int64(len(f.Pixels)) * 4
}

func (c *StillCache) Get(k stillKey) (decode.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.lookup[k]
	if !ok {
		return decode.Frame{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*stillEntry).frame, true
}

func (c *StillCache) Put(k stillKey, f decode.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.lookup[k]; ok {
		old := el.Value.(*stillEntry)
		c.used -= old.bytes
		size := frameByteSize(f)
		el.Value = &stillEntry{key: k, frame: f, bytes: size}
		c.used += size
		c.ll.MoveToFront(el)
		c.evictOverBudget()
		return
	}
	size := frameByteSize(f)
	el := c.ll.PushFront(&stillEntry{key: k, frame: f, bytes: size})
	c.lookup[k] = el
	c.used += size
	c.evictOverBudget()
}

func (c *StillCache) evictOverBudget() {
	for c.budget > 0 && c.used > c.budget {
		back := c.ll.Back()
		if back == nil {
			return
		}
		e := back.Value.(*stillEntry)
		c.ll.Remove(back)
		delete(c.lookup, e.key)
		c.used -= e.bytes
	}
}

// Trim lowers the budget to policy.StillBytes and evicts down to it. A
// non-positive value clears the cache entirely rather than leaving it
// unbounded.
func (c *StillCache) Trim(policy MemoryPressurePolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if policy.StillBytes <= 0 {
		c.ll.Init()
		c.lookup = make(map[stillKey]*list.Element)
		c.used = 0
		return
	}
	c.budget = policy.StillBytes
	c.evictOverBudget()
}

func (c *StillCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.lookup = make(map[stillKey]*list.Element)
	c.used = 0
}

// DecoderStateCache holds open decode.Stream handles, bounded by count
// and evicted LRU. Evicting calls Close on the decoder state.
type DecoderStateCache struct {
	mu     sync.Mutex
	bound  int
	ll     *list.List
	lookup map[string]*list.Element
}

type decoderEntry struct {
	key    string
	stream decode.Stream
}

func NewDecoderStateCache(bound int) *DecoderStateCache {
	return &DecoderStateCache{bound: bound, ll: list.New(), lookup: make(map[string]*list.Element)}
}

func (c *DecoderStateCache) Get(path string) (decode.Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.lookup[path]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*decoderEntry).stream, true
}

func (c *DecoderStateCache) Put(path string, s decode.Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.lookup[path]; ok {
		old := el.Value.(*decoderEntry)
		if old.stream != s {
			_ = old.stream.Close()
		}
		el.Value = &decoderEntry{key: path, stream: s}
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&decoderEntry{key: path, stream: s})
	c.lookup[path] = el
	c.evictOverBound()
}

func (c *DecoderStateCache) evictOverBound() {
	for c.bound > 0 && c.ll.Len() > c.bound {
		back := c.ll.Back()
		if back == nil {
			return
		}
		e := back.Value.(*decoderEntry)
		c.ll.Remove(back)
		delete(c.lookup, e.key)
		_ = e.stream.Close()
	}
}

// Trim lowers the bound to policy.DecoderEntries and closes/evicts
// down to it. A non-positive value closes and clears every open
// decoder rather than leaving the cache unbounded.
func (c *DecoderStateCache) Trim(policy MemoryPressurePolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if policy.DecoderEntries <= 0 {
		for el := c.ll.Front(); el != nil; el = el.Next() {
			_ = el.Value.(*decoderEntry).stream.Close()
		}
		c.ll.Init()
		c.lookup = make(map[string]*list.Element)
		return
	}
	c.bound = policy.DecoderEntries
	c.evictOverBound()
}

// Clear closes and evicts every open decoder.
func (c *DecoderStateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.ll.Front(); el != nil; el = el.Next() {
		_ = el.Value.(*decoderEntry).stream.Close()
	}
	c.ll.Init()
	c.lookup = make(map[string]*list.Element)
}

func frameKeyFor(assetID string, sourceTicks timecode.Time, w, h int) frameKey {
	return frameKey{AssetID: assetID, SourceTicks: sourceTicks.Ticks(), Width: w, Height: h}
}

func stillKeyFor(assetID string, w, h int) stillKey {
	return stillKey{AssetID: assetID, Width: w, Height: h}
}

func (k frameKey) String() string {
	return fmt.Sprintf("%s@%d(%dx%d)", k.AssetID, k.SourceTicks, k.Width, k.Height)
}
