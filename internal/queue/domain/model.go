package domain

import "time"

// EntryStatus is the lifecycle state of one requester's queue entry.
// Transitions are strictly forward: WAITING -> {ENTERED, EXPIRED, LEFT}.
type EntryStatus string

const (
	StatusWaiting EntryStatus = "WAITING"
	StatusEntered EntryStatus = "ENTERED"
	StatusExpired EntryStatus = "EXPIRED"
	StatusLeft    EntryStatus = "LEFT"
)

// Terminal reports whether no further transition is allowed from s.
func (s EntryStatus) Terminal() bool {
	return s == StatusEntered || s == StatusExpired || s == StatusLeft
}

// QueueConfig declares the admission policy for one (event type, event id)
// pair.
type QueueConfig struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	EventType       string    `json:"event_type" gorm:"type:text;not null;uniqueIndex:ux_queue_configs_event,priority:1"`
	EventID         string    `json:"event_id" gorm:"type:text;not null;uniqueIndex:ux_queue_configs_event,priority:2"`
	MaxCapacity     int       `json:"max_capacity" gorm:"not null"`
	BatchSize       int       `json:"batch_size" gorm:"not null"`
	IntervalSeconds int64     `json:"interval_seconds" gorm:"not null"`
	EntryTTLSeconds int64     `json:"entry_ttl_seconds" gorm:"not null"`
	Active          bool      `json:"active" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (QueueConfig) TableName() string { return "queue_configs" }

func (c QueueConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c QueueConfig) EntryTTL() time.Duration {
	return time.Duration(c.EntryTTLSeconds) * time.Second
}

// QueueEntry is one requester's place in line. The opaque token, not the
// requester id, is the capability handed back to the client.
type QueueEntry struct {
	ID          int64       `json:"id" gorm:"primaryKey"`
	EventType   string      `json:"event_type" gorm:"type:text;not null;index:ix_queue_entries_event,priority:1"`
	EventID     string      `json:"event_id" gorm:"type:text;not null;index:ix_queue_entries_event,priority:2"`
	Token       string      `json:"token" gorm:"type:text;not null;uniqueIndex:ux_queue_entries_token"`
	RequesterID string      `json:"requester_id" gorm:"type:text;not null;index:ix_queue_entries_requester"`
	Status      EntryStatus `json:"status" gorm:"type:text;not null"`
	JoinedAt    time.Time   `json:"joined_at" gorm:"not null"`
	EnteredAt   *time.Time  `json:"entered_at,omitempty"`
	ExpiredAt   *time.Time  `json:"expired_at,omitempty"`
	LeftAt      *time.Time  `json:"left_at,omitempty"`
}

func (QueueEntry) TableName() string { return "queue_entries" }
