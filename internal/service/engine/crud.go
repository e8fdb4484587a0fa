package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/alarm-engine/internal/analytics"
	"github.com/oshokin/alarm-engine/internal/config"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
	"github.com/oshokin/alarm-engine/internal/logger"
)

// Load replaces the working set of ownerID with the stored alarms and starts the scan.
// Invalid records are discarded. Repository failures degrade to an empty result.
func (e *Engine) Load(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	if err := e.checkLimit(ctx, config.OperationLoad); err != nil {
		return nil, err
	}

	ownerID = e.ownerOrDefault(ownerID)

	stored, err := e.repo.RetrieveAlarms(ctx, ownerID)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to load alarms", "owner_id", ownerID, "error", err)
		e.track(eventLoadFailed, nil)

		return []*domain.Alarm{}, nil
	}

	accepted := make([]*domain.Alarm, 0, len(stored))

	for _, candidate := range stored {
		if candidate == nil || !domain.Validate(candidate) {
			id := ""
			if candidate != nil {
				id = candidate.ID
			}

			logger.WarnKV(ctx, "Discarded invalid stored alarm", "owner_id", ownerID, "alarm_id", id)
			e.security(ctx, SecurityInvalidAlarm, config.OperationLoad)

			continue
		}

		candidate.Days = domain.NormalizeDays(candidate.Days)
		accepted = append(accepted, candidate)
	}

	e.mu.Lock()

	loaded := make(map[string]struct{}, len(accepted))

	for _, a := range accepted {
		loaded[a.ID] = struct{}{}

		if current, ok := e.entries[a.ID]; ok {
			current.alarm = a.Clone()
			current.partition = ownerID

			if !a.Enabled {
				current.state, current.snoozeUntil = domain.StateDisabled, time.Time{}
			} else if current.state == domain.StateDisabled {
				current.state = domain.StateScheduled
			}

			continue
		}

		e.entries[a.ID] = &entry{
			alarm:     a.Clone(),
			partition: ownerID,
			state:     domain.InitialState(a),
		}
	}

	for id, en := range e.entries {
		if _, ok := loaded[id]; !ok && en.partition == ownerID {
			delete(e.entries, id)
		}
	}

	e.mu.Unlock()

	e.Start(ctx)

	logger.InfoKV(ctx, "Alarms loaded", "owner_id", ownerID, "accepted", len(accepted), "discarded", len(stored)-len(accepted))
	e.track(eventLoaded, nil)

	sortAlarms(accepted)

	return accepted, nil
}

// Save persists the working set of ownerID. Storage failures are returned.
func (e *Engine) Save(ctx context.Context, ownerID string) error {
	if err := e.checkLimit(ctx, config.OperationSave); err != nil {
		return err
	}

	ownerID = e.ownerOrDefault(ownerID)

	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()
	snapshot := e.snapshotLocked(ownerID)
	e.mu.Unlock()

	if err := e.store(ctx, ownerID, snapshot); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Alarms saved", "owner_id", ownerID, "count", len(snapshot))
	e.track(eventSaved, nil)

	return nil
}

// Create builds a new alarm from the draft, persists it and schedules its next occurrence.
// Battle alarms are created through CreateBattleAlarm.
func (e *Engine) Create(ctx context.Context, draft domain.Draft) (*domain.Alarm, error) {
	draft.OwnerID = e.ownerOrDefault(draft.OwnerID)
	draft.BattleID = ""

	now := e.clock.Now()
	created := draft.Build(e.newID(), now)

	if !domain.Validate(created) {
		return nil, fmt.Errorf("create alarm: %w", domain.ErrInvalidAlarmData)
	}

	return e.insert(ctx, created, now, eventCreated)
}

// insert adds a validated alarm to the working set and persists its partition.
func (e *Engine) insert(ctx context.Context, created *domain.Alarm, now time.Time, event string) (*domain.Alarm, error) {
	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()

	e.entries[created.ID] = &entry{
		alarm:     created.Clone(),
		partition: created.OwnerID,
		state:     domain.InitialState(created),
	}

	snapshot := e.snapshotLocked(created.OwnerID)

	e.mu.Unlock()

	err := e.store(ctx, created.OwnerID, snapshot)

	e.schedule(ctx, created, now)

	logger.InfoKV(ctx, "Alarm created", "alarm_id", created.ID, "owner_id", created.OwnerID, "time", created.Time)
	e.track(event, nil)

	return created, err
}

// Update merges the patch into the alarm, persists it and reschedules its notification.
func (e *Engine) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Alarm, error) {
	now := e.clock.Now()

	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()

	en, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()

		return nil, fmt.Errorf("update alarm %q: %w", id, domain.ErrAlarmNotFound)
	}

	merged := patch.Apply(en.alarm, now)
	if !domain.Validate(merged) {
		e.mu.Unlock()

		return nil, fmt.Errorf("update alarm %q: %w", id, domain.ErrInvalidAlarmData)
	}

	en.alarm = merged
	en.state, en.snoozeUntil = domain.InitialState(merged), time.Time{}

	result := merged.Clone()
	snapshot := e.snapshotLocked(en.partition)
	partition := en.partition

	e.mu.Unlock()

	err := e.store(ctx, partition, snapshot)

	e.cancelNotification(ctx, id)
	e.schedule(ctx, result, now)

	logger.InfoKV(ctx, "Alarm updated", "alarm_id", id)
	e.track(eventUpdated, nil)

	return result, err
}

// Delete removes an alarm owned by the requester (or a legacy alarm).
func (e *Engine) Delete(ctx context.Context, id, requesterID string) error {
	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()

	en, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()

		return fmt.Errorf("delete alarm %q: %w", id, domain.ErrAlarmNotFound)
	}

	if !en.alarm.OwnedBy(requesterID) {
		e.mu.Unlock()

		e.security(ctx, SecurityAccessDenied, "delete_alarm")

		return fmt.Errorf("delete alarm %q: %w", id, domain.ErrAccessDenied)
	}

	delete(e.entries, id)

	partition := en.partition
	snapshot := e.snapshotLocked(partition)

	e.mu.Unlock()

	e.cancelNotification(ctx, id)

	err := e.store(ctx, partition, snapshot)

	logger.InfoKV(ctx, "Alarm deleted", "alarm_id", id, "requester", requesterID)
	e.track(eventDeleted, nil)

	return err
}

// Toggle enables or disables an alarm.
// Disabling cancels its notification, enabling schedules the next occurrence.
func (e *Engine) Toggle(ctx context.Context, id string, enabled bool) (*domain.Alarm, error) {
	now := e.clock.Now()

	e.ioMu.Lock()
	defer e.ioMu.Unlock()

	e.mu.Lock()

	en, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()

		return nil, fmt.Errorf("toggle alarm %q: %w", id, domain.ErrAlarmNotFound)
	}

	toggled := en.alarm.Clone()
	toggled.Enabled = enabled
	toggled.Touch(now)

	if !domain.Validate(toggled) {
		e.mu.Unlock()

		return nil, fmt.Errorf("toggle alarm %q: %w", id, domain.ErrInvalidAlarmData)
	}

	en.alarm = toggled

	switch {
	case !enabled:
		en.transition(domain.StateDisabled)
	case en.state == domain.StateDisabled:
		en.transition(domain.StateScheduled)
	}

	result := toggled.Clone()
	partition := en.partition
	snapshot := e.snapshotLocked(partition)

	e.mu.Unlock()

	err := e.store(ctx, partition, snapshot)

	if enabled {
		e.schedule(ctx, result, now)
	} else {
		e.cancelNotification(ctx, id)
	}

	logger.InfoKV(ctx, "Alarm toggled", "alarm_id", id, "enabled", enabled)
	e.track(eventToggled, analytics.Properties{"enabled": fmt.Sprint(enabled)})

	return result, err
}

// GetAll returns every alarm of the working set.
func (e *Engine) GetAll() []*domain.Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.collectLocked(func(*entry) bool { return true })
}

// GetByID returns a copy of the alarm.
func (e *Engine) GetByID(id string) (*domain.Alarm, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.entries[id]
	if !ok {
		return nil, false
	}

	return en.alarm.Clone(), true
}

// GetForOwner returns the alarms of ownerID including legacy alarms.
func (e *Engine) GetForOwner(ownerID string) []*domain.Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.collectLocked(func(en *entry) bool { return en.alarm.OwnedBy(ownerID) })
}

// GetState returns the lifecycle state of the alarm.
func (e *Engine) GetState(id string) (domain.State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.entries[id]
	if !ok {
		return "", false
	}

	return en.state, true
}

// ValidateOwnership reports whether requesterID may act on the alarm.
// Unknown alarms are never owned; legacy alarms are owned by everyone.
func (e *Engine) ValidateOwnership(id, requesterID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	en, ok := e.entries[id]

	return ok && en.alarm.OwnedBy(requesterID)
}

func (e *Engine) ownerOrDefault(ownerID string) string {
	if ownerID == "" {
		return e.settings.DefaultOwner
	}

	return ownerID
}
