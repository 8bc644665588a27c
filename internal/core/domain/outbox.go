package domain

import (
	"encoding/json"
	"time"
)

const (
	OutboxPending    = "pending"
	OutboxDispatched = "dispatched"
	OutboxDead       = "dead"
)

// OutboxEvent is a run event waiting for delivery.
type OutboxEvent struct {
	ID            int64
	EventID       string
	EventType     string
	RunID         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
