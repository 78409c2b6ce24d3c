package issuance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeStore is an in-process Store for tests. A single mutex stands in for
// the script's serialization guarantee.
type FakeStore struct {
	mu     sync.Mutex
	stock  map[string]int64
	claims map[string]map[string]int64

	// Err, when set, is returned by every mutating call. Simulates an
	// unreachable ledger.
	Err error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		stock:  map[string]int64{},
		claims: map[string]map[string]int64{},
	}
}

func (f *FakeStore) InitializeStock(_ context.Context, kind, id string, quantity int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	key := stockKey(kind, id)
	f.stock[key] = quantity
	if _, ok := f.claims[claimsKey(kind, id)]; !ok {
		f.claims[claimsKey(kind, id)] = map[string]int64{}
	}
	return nil
}

func (f *FakeStore) Issue(_ context.Context, kind, id, requesterID string, quantity, maxPerRequester int64) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}

	key := stockKey(kind, id)
	remaining, ok := f.stock[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s:%s", ErrNotInitialized, kind, id)
	}

	claims := f.claims[claimsKey(kind, id)]
	if claims == nil {
		claims = map[string]int64{}
		f.claims[claimsKey(kind, id)] = claims
	}
	if claims[requesterID]+quantity > maxPerRequester {
		return AlreadyClaimed, nil
	}
	if remaining < quantity {
		return Exhausted, nil
	}

	f.stock[key] = remaining - quantity
	claims[requesterID] += quantity
	return Issued, nil
}

func (f *FakeStore) Rollback(_ context.Context, kind, id, requesterID string, quantity int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}

	key := stockKey(kind, id)
	if _, ok := f.stock[key]; !ok {
		return fmt.Errorf("%w: %s:%s", ErrNotInitialized, kind, id)
	}
	f.stock[key] += quantity
	if claims := f.claims[claimsKey(kind, id)]; claims != nil {
		claims[requesterID] -= quantity
		if claims[requesterID] <= 0 {
			delete(claims, requesterID)
		}
	}
	return nil
}

func (f *FakeStore) Remaining(_ context.Context, kind, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining, ok := f.stock[stockKey(kind, id)]
	if !ok {
		return 0, fmt.Errorf("%w: %s:%s", ErrNotInitialized, kind, id)
	}
	return remaining, nil
}

func (f *FakeStore) ClaimCount(_ context.Context, kind, id, requesterID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if claims := f.claims[claimsKey(kind, id)]; claims != nil {
		return claims[requesterID], nil
	}
	return 0, nil
}

func (f *FakeStore) Clear(_ context.Context, kind, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stock, stockKey(kind, id))
	delete(f.claims, claimsKey(kind, id))
	return nil
}

func (f *FakeStore) Expire(_ context.Context, kind, id string, _ time.Duration) error {
	return f.Clear(context.Background(), kind, id)
}

// Initialized reports whether a stock counter exists for the resource.
func (f *FakeStore) Initialized(kind, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stock[stockKey(kind, id)]
	return ok
}
