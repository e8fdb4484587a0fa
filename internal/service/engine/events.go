package engine

import (
	"context"
	"fmt"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// ListEvents returns the event history stored under ownerID.
func (e *Engine) ListEvents(ctx context.Context, ownerID string) ([]domain.Event, error) {
	ownerID = e.ownerOrDefault(ownerID)

	events, err := e.repo.RetrieveAlarmEvents(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list events of %q: %w", domain.ErrStorageFailure, ownerID, err)
	}

	return events, nil
}

// EventStats aggregates the history of an alarm the requester owns.
func (e *Engine) EventStats(ctx context.Context, id, requesterID string) (domain.Stats, error) {
	e.mu.Lock()
	en, ok := e.entries[id]

	var (
		owned     bool
		partition string
	)

	if ok {
		owned = en.alarm.OwnedBy(requesterID)
		partition = en.partition
	}

	e.mu.Unlock()

	switch {
	case !ok:
		return domain.Stats{}, fmt.Errorf("event stats of %q: %w", id, domain.ErrAlarmNotFound)
	case !owned:
		e.security(ctx, SecurityAccessDenied, "event_stats")

		return domain.Stats{}, fmt.Errorf("event stats of %q: %w", id, domain.ErrAccessDenied)
	}

	events, err := e.repo.RetrieveAlarmEvents(ctx, partition)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: event stats of %q: %w", domain.ErrStorageFailure, id, err)
	}

	return domain.Aggregate(id, events), nil
}
