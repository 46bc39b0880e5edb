package clipreader

import "sync"

// CacheOwner is implemented by every bounded cache tier. The
// process-wide memory-pressure broadcaster calls Trim synchronously on
// every registered owner; there is no background sweep (§5 "Caches
// honor a process-wide memory-pressure broadcast; on signal, each
// owner synchronously trims itself").
type CacheOwner interface {
	Trim(policy MemoryPressurePolicy)
	Clear()
}

// PressureBroadcaster fans a memory-pressure signal out to every
// registered CacheOwner in-process. There is no cross-process path: a
// signal reaches only the owners registered in this process.
type PressureBroadcaster struct {
	mu     sync.Mutex
	owners []CacheOwner
}

func NewPressureBroadcaster() *PressureBroadcaster {
	return &PressureBroadcaster{}
}

// Register adds an owner to receive future Signal calls.
func (b *PressureBroadcaster) Register(o CacheOwner) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owners = append(b.owners, o)
}

// Signal synchronously trims every registered owner to policy. It
// blocks until all owners have finished trimming.
func (b *PressureBroadcaster) Signal(policy MemoryPressurePolicy) {
	b.mu.Lock()
	owners := append([]CacheOwner(nil), b.owners...)
	b.mu.Unlock()
	for _, o := range owners {
		o.Trim(policy)
	}
}
