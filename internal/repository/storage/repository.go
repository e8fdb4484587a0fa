package storage

import (
	"context"
	"errors"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// Repository defines persistence operations scoped by owner key.
type Repository interface {
	// RetrieveAlarms returns every alarm stored under ownerID.
	RetrieveAlarms(ctx context.Context, ownerID string) ([]*domain.Alarm, error)
	// StoreAlarms replaces the alarms stored under ownerID.
	StoreAlarms(ctx context.Context, alarms []*domain.Alarm, ownerID string) error
	// StoreAlarmEvents appends events to the history of ownerID.
	StoreAlarmEvents(ctx context.Context, events []domain.Event, ownerID string) error
	// RetrieveAlarmEvents returns the history of ownerID in append order.
	RetrieveAlarmEvents(ctx context.Context, ownerID string) ([]domain.Event, error)
}

// ErrInvalidOwner is returned when the owner key cannot address a partition.
var ErrInvalidOwner = errors.New("owner key must not be empty")
