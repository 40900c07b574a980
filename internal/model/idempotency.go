package model

import (
	"time"

	"github.com/google/uuid"
)

// Idempotency record statuses.
const (
	IdempotencyInProgress = "in_progress"
	IdempotencyCompleted  = "completed"
)

// IdempotencyRecord stores the first successful result of an operation keyed
// by (operation, key). The unique index is the claim: the first request to
// insert the row wins; concurrent duplicates hit the constraint and either
// replay the stored response or see an in-progress conflict. A failed
// execution deletes its claim so the client can retry with the same key.
// Subject pins the claim to the resource it was made for, so reusing a key
// against a different resource is rejected instead of silently replayed.
type IdempotencyRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Operation string    `gorm:"not null;uniqueIndex:ux_idem_operation_key,priority:1"`
	Key       string    `gorm:"not null;uniqueIndex:ux_idem_operation_key,priority:2"`
	Subject   string    `gorm:"not null"`
	Status    string    `gorm:"type:varchar(15);not null;default:'in_progress'"`
	Response  []byte    `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
