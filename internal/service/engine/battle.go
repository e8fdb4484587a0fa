package engine

import (
	"context"
	"fmt"

	"github.com/oshokin/alarm-engine/internal/battle"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
	"github.com/oshokin/alarm-engine/internal/logger"
)

// GetBattleAlarms returns the battle-linked alarms of ownerID.
func (e *Engine) GetBattleAlarms(ownerID string) []*domain.Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.collectLocked(func(en *entry) bool {
		return en.alarm.OwnedBy(ownerID) && en.alarm.IsBattleLinked()
	})
}

// GetNonBattleAlarms returns the alarms of ownerID that belong to no battle.
func (e *Engine) GetNonBattleAlarms(ownerID string) []*domain.Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.collectLocked(func(en *entry) bool {
		return en.alarm.OwnedBy(ownerID) && !en.alarm.IsBattleLinked()
	})
}

// CreateBattleAlarm lets the battle service build the record, then validates
// and persists it like Create.
func (e *Engine) CreateBattleAlarm(ctx context.Context, battleID string, draft domain.Draft) (*domain.Alarm, error) {
	draft.OwnerID = e.ownerOrDefault(draft.OwnerID)
	draft.BattleID = battleID

	now := e.clock.Now()

	created, err := e.battle.CreateBattleAlarm(ctx, battle.Request{
		ID:       e.newID(),
		BattleID: battleID,
		Draft:    draft,
		Now:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("create battle alarm for battle %q: %w", battleID, err)
	}

	if !e.validBattleAlarm(created) {
		e.security(ctx, SecurityInvalidBattleAlarm, "create_battle_alarm")

		return nil, fmt.Errorf("create battle alarm for battle %q: %w", battleID, domain.ErrInvalidBattleAlarmData)
	}

	created.Days = domain.NormalizeDays(created.Days)

	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}

	created.Touch(now)

	return e.insert(ctx, created, now, eventBattleCreated)
}

func (e *Engine) validBattleAlarm(a *domain.Alarm) bool {
	if a == nil || !a.IsBattleLinked() || a.OwnerID == "" || !domain.Validate(a) {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, exists := e.entries[a.ID]

	return !exists
}

// UnlinkFromBattle detaches the alarm from its battle and restores the default snooze policy.
// Unknown and unlinked alarms are ignored.
func (e *Engine) UnlinkFromBattle(ctx context.Context, id string) error {
	now := e.clock.Now()

	e.ioMu.Lock()
	e.mu.Lock()

	en, ok := e.entries[id]
	if !ok || !en.alarm.IsBattleLinked() {
		e.mu.Unlock()
		e.ioMu.Unlock()

		logger.DebugKV(ctx, "Unlink of unknown or unlinked alarm ignored", "alarm_id", id)

		return nil
	}

	battleID := en.alarm.BattleID

	unlinked := en.alarm.Clone()
	unlinked.BattleID = ""
	unlinked.Snooze = domain.DefaultSnoozePolicy()
	unlinked.Touch(now)

	en.alarm = unlinked

	result := unlinked.Clone()
	partition := en.partition
	snapshot := e.snapshotLocked(partition)

	e.mu.Unlock()

	err := e.store(ctx, partition, snapshot)

	e.schedule(ctx, result, now)

	e.ioMu.Unlock()

	if hookErr := e.battle.UnlinkAlarmFromBattle(ctx, id); hookErr != nil {
		logger.ErrorKV(ctx, "Battle unlink hook failed", "alarm_id", id, "battle_id", battleID, "error", hookErr)
	}

	logger.InfoKV(ctx, "Alarm unlinked from battle", "alarm_id", id, "battle_id", battleID)
	e.track(eventBattleUnlinked, nil)

	return err
}
