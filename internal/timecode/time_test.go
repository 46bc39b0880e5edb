package timecode

import "testing"

func TestFromFrameExact(t *testing.T) {
	cases := []struct {
		fps        FPS
		frames     int64
		wantTicks  int64
	}{
		{FPS{24, 1}, 24, Rate},
		{FPS{30, 1}, 30, Rate},
		{FPS{24000, 1001}, 24000, Rate * 1001},
		{FPS{30000, 1001}, 30000, Rate * 1001},
		{FPS{60000, 1001}, 60000, Rate * 1001},
	}
	for _, c := range cases {
		got := FromFrame(c.frames, c.fps.Num, c.fps.Den)
		if got.Ticks() != c.wantTicks {
			t.Errorf("FromFrame(%d, %d/%d) = %d ticks, want %d", c.frames, c.fps.Num, c.fps.Den, got.Ticks(), c.wantTicks)
		}
	}
}

func TestOrderingAndArithmetic(t *testing.T) {
	a := FromTicks(1000)
	b := FromTicks(2000)
	if !a.Less(b) || b.Less(a) {
		t.Fatal("ordering broken")
	}
	sum := a.Add(b)
	if sum.Ticks() != 3000 {
		t.Fatalf("Add = %d, want 3000", sum.Ticks())
	}
	diff := b.Sub(a)
	if diff.Ticks() != 1000 {
		t.Fatalf("Sub = %d, want 1000", diff.Ticks())
	}
}

func TestProgress(t *testing.T) {
	start := FromSeconds(1.0)
	end := FromSeconds(2.0)
	mid := FromSeconds(1.5)
	if p := Progress(mid, start, end); p < 0.49 || p > 0.51 {
		t.Fatalf("Progress = %f, want ~0.5", p)
	}
	if p := Progress(start, start, end); p != 0 {
		t.Fatalf("Progress at start = %f, want 0", p)
	}
	if p := Progress(end, start, end); p != 1 {
		t.Fatalf("Progress at end = %f, want 1", p)
	}
	if p := Progress(FromSeconds(5), start, start); p != 0 {
		t.Fatalf("Progress on zero-length range = %f, want 0", p)
	}
}

func TestRangeContainsAndOverlaps(t *testing.T) {
	r := Range{Start: FromSeconds(1), Duration: FromSeconds(2)}
	if !r.Contains(FromSeconds(1)) {
		t.Error("range should contain its start")
	}
	if r.Contains(FromSeconds(3)) {
		t.Error("range end is exclusive")
	}
	o := Range{Start: FromSeconds(2.5), Duration: FromSeconds(1)}
	if !r.Overlaps(o) {
		t.Error("expected overlap")
	}
	disjoint := Range{Start: FromSeconds(10), Duration: FromSeconds(1)}
	if r.Overlaps(disjoint) {
		t.Error("expected no overlap")
	}
}

func TestFrameAt(t *testing.T) {
	fps := FPS{30000, 1001}
	for frame := int64(0); frame < 120; frame++ {
		tm := FromFrame(frame, fps.Num, fps.Den)
		if got := fps.FrameAt(tm); got != frame {
			t.Fatalf("FrameAt(FromFrame(%d)) = %d, want %d", frame, got, frame)
		}
	}
}
