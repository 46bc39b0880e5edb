package clipreader

import (
	"testing"

	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/timecode"
)

func frame(n int) decode.Frame {
	return decode.Frame{Width: 1, Height: 1, Pixels: make([]float32, n)}
}

func TestFrameCacheEvictsLRU(t *testing.T) {
	c := NewFrameCache(2)
	k1 := frameKeyFor("a", timecode.Zero, 1, 1)
	k2 := frameKeyFor("b", timecode.Zero, 1, 1)
	k3 := frameKeyFor("c", timecode.Zero, 1, 1)

	c.Put(k1, frame(4))
	c.Put(k2, frame(4))
	if _, ok := c.Get(k1); !ok {
		t.Fatal("k1 should still be present")
	}
	c.Put(k3, frame(4)) // k2 is now least-recently-used, should evict
	if _, ok := c.Get(k2); ok {
		t.Fatal("expected k2 to be evicted")
	}
	if _, ok := c.Get(k1); !ok {
		t.Fatal("k1 should survive (was touched before k3 insert)")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}

func TestFrameCacheTrimLowersBound(t *testing.T) {
	c := NewFrameCache(4)
	for i := 0; i < 4; i++ {
		c.Put(frameKeyFor(string(rune('a'+i)), timecode.Zero, 1, 1), frame(4))
	}
	c.Trim(MemoryPressurePolicy{FrameEntries: 1})
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after trim, got %d", c.Len())
	}
}

func TestFrameCacheClear(t *testing.T) {
	c := NewFrameCache(4)
	c.Put(frameKeyFor("a", timecode.Zero, 1, 1), frame(4))
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestStillCacheEvictsByByteBudget(t *testing.T) {
	c := NewStillCache(32) // room for exactly two 4-float entries (16 bytes each)
	k1 := stillKeyFor("a", 1, 1)
	k2 := stillKeyFor("b", 1, 1)
	k3 := stillKeyFor("c", 1, 1)

	c.Put(k1, frame(4))
	c.Put(k2, frame(4))
	c.Put(k3, frame(4)) // pushes used bytes over budget, evicts k1
	if _, ok := c.Get(k1); ok {
		t.Fatal("expected k1 evicted once budget exceeded")
	}
	if _, ok := c.Get(k3); !ok {
		t.Fatal("expected k3 present")
	}
}

func TestStillCacheTrimToZeroClears(t *testing.T) {
	c := NewStillCache(1024)
	c.Put(stillKeyFor("a", 1, 1), frame(4))
	c.Trim(MemoryPressurePolicy{StillBytes: 0})
	if _, ok := c.Get(stillKeyFor("a", 1, 1)); ok {
		t.Fatal("expected entry evicted after trimming budget to 0")
	}
}

type closeTrackingStream struct {
	decode.Stream
	closed *bool
}

func (s closeTrackingStream) Close() error {
	*s.closed = true
	return nil
}

func TestDecoderStateCacheClosesEvicted(t *testing.T) {
	c := NewDecoderStateCache(1)
	closedA := false
	closedB := false
	c.Put("a", closeTrackingStream{closed: &closedA})
	c.Put("b", closeTrackingStream{closed: &closedB}) // evicts a
	if !closedA {
		t.Fatal("expected evicted decoder state to be closed")
	}
	if closedB {
		t.Fatal("did not expect the still-cached decoder to be closed")
	}
}

func TestDecoderStateCacheClearClosesAll(t *testing.T) {
	c := NewDecoderStateCache(4)
	closedA, closedB := false, false
	c.Put("a", closeTrackingStream{closed: &closedA})
	c.Put("b", closeTrackingStream{closed: &closedB})
	c.Clear()
	if !closedA || !closedB {
		t.Fatal("expected Clear to close all open decoder states")
	}
}
