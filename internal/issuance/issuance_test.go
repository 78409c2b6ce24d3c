package issuance

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueNoOversell(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.InitializeStock(ctx, "coupon", "100", 2))

	results := make(chan Result, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := store.Issue(ctx, "coupon", "100", fmt.Sprintf("user-%d", n), 1, 1)
			require.NoError(t, err)
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)

	var issued, exhausted int
	for res := range results {
		switch res {
		case Issued:
			issued++
		case Exhausted:
			exhausted++
		default:
			t.Fatalf("unexpected result %v", res)
		}
	}
	assert.Equal(t, 2, issued)
	assert.Equal(t, 1, exhausted)

	remaining, err := store.Remaining(ctx, "coupon", "100")
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestIssueManyCallersNeverExceedStock(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()
	const total = 50
	require.NoError(t, store.InitializeStock(ctx, "deal", "7", total))

	var wg sync.WaitGroup
	var mu sync.Mutex
	issued := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := store.Issue(ctx, "deal", "7", fmt.Sprintf("user-%d", n), 1, 1)
			require.NoError(t, err)
			if res == Issued {
				mu.Lock()
				issued++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, total, issued)
}

func TestIssueSingleClaimUnderConcurrentRetries(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.InitializeStock(ctx, "coupon", "1", 100))

	var wg sync.WaitGroup
	var mu sync.Mutex
	issued := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Issue(ctx, "coupon", "1", "user-1", 1, 1)
			require.NoError(t, err)
			if res == Issued {
				mu.Lock()
				issued++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, issued)

	count, err := store.ClaimCount(ctx, "coupon", "1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIssueSecondCallAlreadyClaimed(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.InitializeStock(ctx, "coupon", "9", 10))

	res, err := store.Issue(ctx, "coupon", "9", "user-1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, Issued, res)

	res, err = store.Issue(ctx, "coupon", "9", "user-1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, AlreadyClaimed, res)
}

func TestIssueQuantityCap(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.InitializeStock(ctx, "deal", "3", 10))

	res, err := store.Issue(ctx, "deal", "3", "user-1", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, Issued, res)

	// 2 already claimed, 2 more would exceed the cap of 3.
	res, err = store.Issue(ctx, "deal", "3", "user-1", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, AlreadyClaimed, res)

	res, err = store.Issue(ctx, "deal", "3", "user-1", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, Issued, res)

	remaining, err := store.Remaining(ctx, "deal", "3")
	require.NoError(t, err)
	assert.Equal(t, int64(7), remaining)
}

func TestRollbackRestoresCounts(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.InitializeStock(ctx, "deal", "5", 10))

	res, err := store.Issue(ctx, "deal", "5", "user-1", 3, 5)
	require.NoError(t, err)
	require.Equal(t, Issued, res)

	require.NoError(t, store.Rollback(ctx, "deal", "5", "user-1", 3))

	remaining, err := store.Remaining(ctx, "deal", "5")
	require.NoError(t, err)
	assert.Equal(t, int64(10), remaining)

	count, err := store.ClaimCount(ctx, "deal", "5", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestIssueUninitializedFailsClosed(t *testing.T) {
	store := NewFakeStore()

	res, err := store.Issue(context.Background(), "coupon", "404", "user-1", 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NotEqual(t, Exhausted, res)
}

func TestClearRemovesResource(t *testing.T) {
	store := NewFakeStore()
	ctx := context.Background()
	require.NoError(t, store.InitializeStock(ctx, "coupon", "8", 5))

	_, err := store.Issue(ctx, "coupon", "8", "user-1", 1, 1)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "coupon", "8"))

	_, err = store.Remaining(ctx, "coupon", "8")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "issued", Issued.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "already_claimed", AlreadyClaimed.String())
}
