package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is the tri-state outcome of an Issue call. A Result is only
// meaningful when the accompanying error is nil; infrastructure failures
// deny the claim by returning an error, never Exhausted.
type Result int

const (
	Issued Result = iota
	Exhausted
	AlreadyClaimed
)

func (r Result) String() string {
	switch r {
	case Issued:
		return "issued"
	case Exhausted:
		return "exhausted"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}

// ErrNotInitialized is returned when a resource's stock counter does not
// exist in the ledger. The counter is a rebuildable cache of the relational
// source of truth; a missing counter means the resource is not live (or the
// cache was wiped and recovery has not run yet), so issuance fails closed.
var ErrNotInitialized = errors.New("issuance: stock not initialized")

// Store is the atomic issuance ledger. All multi-step mutations execute as
// a single server-side script so that no caller ever observes a partial
// decrement or a stock check racing a claim check.
type Store interface {
	// InitializeStock sets the remaining counter for a resource. Called only
	// during controlled lifecycle transitions, never on the request path.
	InitializeStock(ctx context.Context, kind, id string, quantity int64) error

	// Issue atomically checks the requester's running claim total against
	// maxPerRequester, checks remaining stock against quantity, and on
	// success decrements the counter and records the claim.
	Issue(ctx context.Context, kind, id, requesterID string, quantity, maxPerRequester int64) (Result, error)

	// Rollback re-increments the counter and reduces the requester's
	// recorded claim. Compensating action for a downstream failure after a
	// successful Issue; deliberately not atomic with any check.
	Rollback(ctx context.Context, kind, id, requesterID string, quantity int64) error

	// Remaining and ClaimCount are read-only and eventually consistent with
	// concurrent Issue calls.
	Remaining(ctx context.Context, kind, id string) (int64, error)
	ClaimCount(ctx context.Context, kind, id, requesterID string) (int64, error)

	// Clear removes the counter and claim records for a resource.
	Clear(ctx context.Context, kind, id string) error

	// Expire schedules the resource's keys for removal after ttl, keeping
	// claim records readable for a grace window after the resource ends.
	Expire(ctx context.Context, kind, id string, ttl time.Duration) error
}

func stockKey(kind, id string) string {
	return fmt.Sprintf("%s:stock:%s", kind, id)
}

func claimsKey(kind, id string) string {
	return fmt.Sprintf("%s:claims:%s", kind, id)
}
