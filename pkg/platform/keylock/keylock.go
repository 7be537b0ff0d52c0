package keylock

import "sync"

// KeyLock serializes work per key. The state engine uses it to guarantee at
// most one in-flight calculation per entity while distinct entities proceed
// in parallel.
//
// Locks are created lazily and retained for the process lifetime; the key
// space (entity IDs) is small enough that eviction is not worth the
// bookkeeping.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, blocking until it is free.
func (k *KeyLock) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the mutex for key. Calling Unlock for a key that was never
// locked panics, same as sync.Mutex.
func (k *KeyLock) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *KeyLock) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
