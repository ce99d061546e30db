package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventKind string

const (
	EventNewComplaint EventKind = "new-complaint"
	EventStatusUpdate EventKind = "status-update"
	EventComment      EventKind = "comment"
	EventAnnouncement EventKind = "announcement"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxDone    OutboxStatus = "done"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxEvent is written in the same transaction as the mutation that caused
// it and dispatched to notification fan-out after commit.
type OutboxEvent struct {
	ID            uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	Kind          EventKind    `gorm:"size:30;not null" json:"kind"`
	AggregateID   uuid.UUID    `gorm:"type:uuid;index;not null" json:"aggregate_id"`
	EntryID       *uuid.UUID   `gorm:"type:uuid" json:"entry_id,omitempty"`
	ActorID       uuid.UUID    `gorm:"type:uuid;not null" json:"actor_id"`
	ActorRole     Role         `gorm:"size:20;not null" json:"actor_role"`
	Status        OutboxStatus `gorm:"size:20;index:idx_outbox_due;not null" json:"status"`
	Attempts      int          `gorm:"not null" json:"attempts"`
	LastError     string       `gorm:"type:text" json:"last_error,omitempty"`
	NextAttemptAt time.Time    `gorm:"index:idx_outbox_due" json:"next_attempt_at"`
	ProcessedAt   *time.Time   `json:"processed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = OutboxPending
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = time.Now()
	}
	return nil
}

func NewOutboxEvent(kind EventKind, aggregateID uuid.UUID, entryID *uuid.UUID, actorID uuid.UUID, actorRole Role) *OutboxEvent {
	return &OutboxEvent{
		Kind:        kind,
		AggregateID: aggregateID,
		EntryID:     entryID,
		ActorID:     actorID,
		ActorRole:   actorRole,
	}
}
