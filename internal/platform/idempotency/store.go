// Package idempotency records which inbound deliveries have already been applied
// so redelivered Pub/Sub messages can be acknowledged without reprocessing.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	// DefaultTTL is how long completed entries are retained.
	DefaultTTL = 24 * time.Hour
	// DefaultPendingHold is how long a pending entry blocks other workers before
	// it is treated as abandoned.
	DefaultPendingHold = 5 * time.Minute

	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of Reserve.
type ReservationState int

const (
	// ReservationStateNew means the caller owns the key and should process the message.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means the message was already applied.
	ReservationStateCompleted
	// ReservationStatePending means another worker is processing the message now.
	ReservationStatePending
)

func (s ReservationState) String() string {
	switch s {
	case ReservationStateNew:
		return "new"
	case ReservationStateCompleted:
		return "completed"
	case ReservationStatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Record is a stored ledger entry.
type Record struct {
	Key       string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Reservation is returned by Reserve.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Store persists ledger entries.
type Store interface {
	Reserve(ctx context.Context, key string, now time.Time, pendingHold time.Duration) (Reservation, error)
	Complete(ctx context.Context, key string, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrEmptyKey is returned when a blank key is supplied.
var ErrEmptyKey = errors.New("idempotency: key is required")

// Key joins parts into a stable ledger key.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

func documentID(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// decide applies the reservation rules to an existing record. It returns the
// record to store (nil when nothing changes) and the resulting state.
func decide(existing *Record, key string, now time.Time, pendingHold time.Duration) (*Record, ReservationState) {
	fresh := &Record{Key: key, Status: StatusPending, CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(pendingHold)}
	if existing == nil || !now.Before(existing.ExpiresAt) {
		return fresh, ReservationStateNew
	}
	if existing.Status == StatusCompleted {
		return nil, ReservationStateCompleted
	}
	return nil, ReservationStatePending
}
