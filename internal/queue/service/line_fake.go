package service

import (
	"context"
	"sort"
	"sync"
	"time"
)

// FakeLine is an in-process Line for tests, mirroring the ordering
// semantics of the real sorted sets.
type FakeLine struct {
	mu      sync.Mutex
	waiting map[string][]scoredToken
	entered map[string][]scoredToken

	// Err, when set, is returned by every mutating call. Simulates an
	// unreachable line.
	Err error
}

type scoredToken struct {
	token string
	score int64
}

func NewFakeLine() *FakeLine {
	return &FakeLine{
		waiting: map[string][]scoredToken{},
		entered: map[string][]scoredToken{},
	}
}

func insertSorted(items []scoredToken, st scoredToken) []scoredToken {
	for i, existing := range items {
		if existing.token == st.token {
			items[i].score = st.score
			sort.SliceStable(items, func(a, b int) bool { return items[a].score < items[b].score })
			return items
		}
	}
	items = append(items, st)
	sort.SliceStable(items, func(a, b int) bool { return items[a].score < items[b].score })
	return items
}

func removeToken(items []scoredToken, token string) []scoredToken {
	for i, existing := range items {
		if existing.token == token {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}

func (f *FakeLine) AddWaiting(_ context.Context, eventType, eventID, token string, joinedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	key := waitingKey(eventType, eventID)
	f.waiting[key] = insertSorted(f.waiting[key], scoredToken{token: token, score: joinedAt.UnixMilli()})
	return nil
}

func (f *FakeLine) WaitingRank(_ context.Context, eventType, eventID, token string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, st := range f.waiting[waitingKey(eventType, eventID)] {
		if st.token == token {
			return int64(i), true, nil
		}
	}
	return 0, false, nil
}

func (f *FakeLine) WaitingCount(_ context.Context, eventType, eventID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.waiting[waitingKey(eventType, eventID)])), nil
}

func (f *FakeLine) PopOldestWaiting(_ context.Context, eventType, eventID string, n int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	key := waitingKey(eventType, eventID)
	items := f.waiting[key]
	if n > int64(len(items)) {
		n = int64(len(items))
	}
	if n <= 0 {
		return nil, nil
	}
	tokens := make([]string, 0, n)
	for _, st := range items[:n] {
		tokens = append(tokens, st.token)
	}
	f.waiting[key] = items[n:]
	return tokens, nil
}

func (f *FakeLine) RemoveWaiting(_ context.Context, eventType, eventID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	key := waitingKey(eventType, eventID)
	f.waiting[key] = removeToken(f.waiting[key], token)
	return nil
}

func (f *FakeLine) AddEntered(_ context.Context, eventType, eventID, token string, enteredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	key := enteredKey(eventType, eventID)
	f.entered[key] = insertSorted(f.entered[key], scoredToken{token: token, score: enteredAt.UnixMilli()})
	return nil
}

func (f *FakeLine) EnteredCount(_ context.Context, eventType, eventID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entered[enteredKey(eventType, eventID)])), nil
}

func (f *FakeLine) RemoveEntered(_ context.Context, eventType, eventID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	key := enteredKey(eventType, eventID)
	f.entered[key] = removeToken(f.entered[key], token)
	return nil
}

func (f *FakeLine) PruneEntered(_ context.Context, eventType, eventID string, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	key := enteredKey(eventType, eventID)
	cutoff := before.UnixMilli()
	kept := f.entered[key][:0]
	var pruned int64
	for _, st := range f.entered[key] {
		if st.score <= cutoff {
			pruned++
			continue
		}
		kept = append(kept, st)
	}
	f.entered[key] = kept
	return pruned, nil
}

func (f *FakeLine) Clear(_ context.Context, eventType, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.waiting, waitingKey(eventType, eventID))
	delete(f.entered, enteredKey(eventType, eventID))
	return nil
}
