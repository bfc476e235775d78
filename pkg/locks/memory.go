package locks

import (
	"context"
	"sync"
)

// Memory is an in-process keyed lock. Slots are reference counted so keys
// for long-gone groups do not accumulate.
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	refs  map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		slots: make(map[string]chan struct{}),
		refs:  make(map[string]int),
	}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()

	slot, ok := m.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		m.slots[key] = slot
	}

	m.refs[key]++
	m.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() {
			<-slot
			m.release(key)
		}, nil
	case <-ctx.Done():
		m.release(key)

		return nil, ctx.Err()
	}
}

func (m *Memory) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refs[key]--
	if m.refs[key] <= 0 {
		delete(m.refs, key)
		delete(m.slots, key)
	}
}
