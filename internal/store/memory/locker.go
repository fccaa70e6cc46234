// internal/store/memory/locker.go
package memory

import (
	"context"
	"sync"
)

// keyedLocker serializes work per key. Distinct keys never block each other.
type keyedLocker[K comparable] struct {
	mu       sync.Mutex
	registry map[K]*keyLock
}

type keyLock struct {
	released chan struct{}
}

func newKeyedLocker[K comparable]() *keyedLocker[K] {
	return &keyedLocker[K]{registry: make(map[K]*keyLock)}
}

// Acquire blocks until the caller owns key or ctx is done. The returned func releases it.
func (k *keyedLocker[K]) Acquire(ctx context.Context, key K) (func(), error) {
	for {
		k.mu.Lock()
		held, exists := k.registry[key]
		if !exists {
			l := &keyLock{released: make(chan struct{})}
			k.registry[key] = l
			k.mu.Unlock()
			return func() { k.release(key, l) }, nil
		}
		k.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-held.released:
		}
	}
}

func (k *keyedLocker[K]) release(key K, l *keyLock) {
	k.mu.Lock()
	if k.registry[key] == l {
		delete(k.registry, key)
	}
	k.mu.Unlock()
	close(l.released)
}
