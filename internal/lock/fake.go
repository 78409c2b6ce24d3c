package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeLocker is an in-process Locker for tests. Leases never expire on
// their own; tests release them explicitly or call ForceRelease.
type FakeLocker struct {
	mu     sync.Mutex
	held   map[string]string
	FailOn map[string]error
}

func NewFakeLocker() *FakeLocker {
	return &FakeLocker{held: map[string]string{}}
}

func (f *FakeLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailOn[key]; ok {
		return "", false, err
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	f.held[key] = token
	return token, true, nil
}

func (f *FakeLocker) Release(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	return nil
}

// ForceRelease drops a lease regardless of owner.
func (f *FakeLocker) ForceRelease(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
}

// Held reports whether any lease currently owns the key.
func (f *FakeLocker) Held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.held[key]
	return ok
}
