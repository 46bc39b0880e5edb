package clipreader

import "testing"

type recordingOwner struct {
	trimmed bool
	cleared bool
	seen    MemoryPressurePolicy
}

func (o *recordingOwner) Trim(p MemoryPressurePolicy) { o.trimmed = true; o.seen = p }
func (o *recordingOwner) Clear()                      { o.cleared = true }

func TestPressureBroadcasterSignalsAllRegisteredOwners(t *testing.T) {
	b := NewPressureBroadcaster()
	o1 := &recordingOwner{}
	o2 := &recordingOwner{}
	b.Register(o1)
	b.Register(o2)

	policy := MemoryPressurePolicy{FrameEntries: 2, StillBytes: 1024, DecoderEntries: 1}
	b.Signal(policy)

	if !o1.trimmed || !o2.trimmed {
		t.Fatal("expected both owners to be trimmed")
	}
	if o1.seen != policy || o2.seen != policy {
		t.Fatal("expected owners to receive the signaled policy")
	}
}

func TestPressureBroadcasterNoOwnersIsNoop(t *testing.T) {
	b := NewPressureBroadcaster()
	b.Signal(MemoryPressurePolicy{}) // must not panic
}

func TestReaderCachesRegisterWithBroadcaster(t *testing.T) {
	r := NewReader(nil, nil, nil, nil, DefaultPolicy)
	b := NewPressureBroadcaster()
	r.RegisterWith(b)
	b.Signal(MemoryPressurePolicy{FrameEntries: 1, StillBytes: 1, DecoderEntries: 1})
	if r.frames.Len() != 0 {
		t.Fatal("expected empty frame cache to remain empty after trim")
	}
}
