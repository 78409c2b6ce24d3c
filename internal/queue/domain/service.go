package domain

import (
	"context"
	"errors"
)

var (
	ErrQueueActive   = errors.New("queue_already_active")
	ErrQueueNotFound = errors.New("queue_not_found")
	ErrEntryNotFound = errors.New("queue_entry_not_found")
)

type Service interface {
	// Configure creates the admission policy for an event, or reactivates a
	// previously deactivated one with fresh values. Rejects an event whose
	// queue is already active.
	Configure(ctx context.Context, req ConfigureRequest) (*QueueConfig, error)

	// Deactivate closes the gate: remaining WAITING entries are expired and
	// the line is cleared. Idempotent.
	Deactivate(ctx context.Context, eventType, eventID string) error

	ActiveQueues(ctx context.Context) ([]QueueConfig, error)

	// Enter appends a waiting entry for the requester, or returns the
	// requester's existing open entry.
	Enter(ctx context.Context, eventType, eventID, requesterID string) (*EntryStatusResponse, error)

	// Status reports the entry's state with a freshly computed position, so
	// a missed release cycle self-corrects on the next poll.
	Status(ctx context.Context, token string) (*EntryStatusResponse, error)

	// Leave marks the entry LEFT. Idempotent; terminal entries are left
	// untouched.
	Leave(ctx context.Context, token string) error

	// ReleaseBatch admits up to batchSize oldest-waiting entries, bounded by
	// the queue's free capacity. Returns how many were admitted.
	ReleaseBatch(ctx context.Context, eventType, eventID string) (int, error)

	// ExpireOverdue expires WAITING entries older than the queue's entry TTL
	// and frees line capacity held by stale admissions.
	ExpireOverdue(ctx context.Context, eventType, eventID string) (int, error)

	// ValidateAdmission is the configurable gate consulted before issuance:
	// open when the event has no active queue, otherwise the requester needs
	// an ENTERED entry.
	ValidateAdmission(ctx context.Context, eventType, eventID, requesterID string) (bool, error)
}

type ConfigureRequest struct {
	EventType       string `json:"event_type"`
	EventID         string `json:"event_id"`
	MaxCapacity     int    `json:"max_capacity"`
	BatchSize       int    `json:"batch_size"`
	IntervalSeconds int64  `json:"interval_seconds"`
	EntryTTLSeconds int64  `json:"entry_ttl_seconds"`
}

// EntryStatusResponse is what the client polls against. Position is 1-based
// among still-waiting entries and only meaningful while Status is WAITING.
type EntryStatusResponse struct {
	Token                string      `json:"token"`
	EventType            string      `json:"event_type"`
	EventID              string      `json:"event_id"`
	Status               EntryStatus `json:"status"`
	Position             int64       `json:"position,omitempty"`
	EstimatedWaitSeconds int64       `json:"estimated_wait_seconds,omitempty"`
	TotalWaiting         int64       `json:"total_waiting"`
}
