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

type triggered struct {
	alarm     *domain.Alarm
	partition string
	event     domain.Event
}

// ScanOnce triggers every enabled alarm whose day and minute match the clock,
// and every snoozed alarm whose deadline elapsed. Each match window fires once.
// It returns the number of triggered alarms.
func (e *Engine) ScanOnce(ctx context.Context) int {
	now := e.clock.Now()

	e.ioMu.Lock()
	e.mu.Lock()

	var fired []triggered

	for id, en := range e.entries {
		if !en.alarm.Enabled {
			continue
		}

		var window string

		switch {
		case en.alarm.Matches(now):
			window = id + "@" + now.Format(matchWindowLayout)
		case en.state == domain.StateSnoozed && !en.snoozeUntil.IsZero() && !now.Before(en.snoozeUntil):
			window = id + "@snooze@" + en.snoozeUntil.Format(time.RFC3339)
		default:
			continue
		}

		if !e.firstInWindow(ctx, window) {
			continue
		}

		if !en.transition(domain.StateTriggered) {
			continue
		}

		fired = append(fired, triggered{
			alarm:     en.alarm.Clone(),
			partition: en.partition,
			event:     e.newEvent(en.alarm, domain.EventTriggered, domain.MethodSystem, en.alarm.OwnerID, now),
		})
	}

	e.mu.Unlock()

	for _, t := range fired {
		logger.InfoKV(ctx, "Alarm triggered", "alarm_id", t.alarm.ID, "label", t.alarm.Label, "time", t.alarm.Time)

		e.signals.publish(Signal{
			Kind:  SignalTriggered,
			Alarm: t.alarm,
			At:    now,
		})

		e.recordEvents(ctx, t.partition, t.event)
		e.track(eventTriggered, analytics.Properties{analytics.PropertySource: "scan"})
	}

	e.ioMu.Unlock()

	for _, t := range fired {
		if !t.alarm.IsBattleLinked() {
			continue
		}

		if err := e.battle.HandleAlarmTrigger(ctx, t.alarm); err != nil {
			logger.ErrorKV(ctx, "Battle trigger hook failed", "alarm_id", t.alarm.ID, "battle_id", t.alarm.BattleID, "error", err)
		}
	}

	logger.DebugKV(ctx, "Trigger scan finished", "at", now, "triggered", len(fired))

	return len(fired)
}

// firstInWindow records the window and reports whether it was new.
func (e *Engine) firstInWindow(ctx context.Context, window string) bool {
	previous, err := e.fired.GetOrSet([]byte(window), []byte{1}, dedupeTTLSeconds)
	if err != nil {
		logger.WarnKV(ctx, "Failed to record trigger window", "window", window, "error", err)

		return true
	}

	return previous == nil
}

// claimWindow marks the current match window of a handled occurrence
// so the scan does not trigger it again. The caller holds mu.
func (e *Engine) claimWindow(ctx context.Context, en *entry, now time.Time) {
	if !en.alarm.Matches(now) {
		return
	}

	window := en.alarm.ID + "@" + now.Format(matchWindowLayout)

	if err := e.fired.Set([]byte(window), []byte{1}, dedupeTTLSeconds); err != nil {
		logger.WarnKV(ctx, "Failed to record trigger window", "window", window, "error", err)
	}
}

// Dismiss ends the current occurrence: the snooze count resets to zero and the
// next occurrence is scheduled. Unknown alarms are ignored.
func (e *Engine) Dismiss(ctx context.Context, id string, method domain.Method, requesterID string) error {
	if err := e.checkLimit(ctx, config.OperationDismiss); err != nil {
		return err
	}

	now := e.clock.Now()

	e.ioMu.Lock()
	e.mu.Lock()

	en, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()
		e.ioMu.Unlock()

		logger.DebugKV(ctx, "Dismiss of unknown alarm ignored", "alarm_id", id)

		return nil
	}

	dismissed := en.alarm.Clone()
	dismissed.Snooze.Count = 0
	dismissed.Touch(now)

	en.alarm = dismissed
	en.transition(domain.StateDismissed)
	e.claimWindow(ctx, en, now)

	if method == "" {
		method = domain.MethodButton
	}

	event := e.newEvent(dismissed, domain.EventDismissed, method, requesterID, now)
	result := dismissed.Clone()
	partition := en.partition
	snapshot := e.snapshotLocked(partition)

	e.mu.Unlock()

	e.recordEvents(ctx, partition, event)

	err := e.store(ctx, partition, snapshot)

	e.schedule(ctx, result, now)

	e.ioMu.Unlock()

	if result.IsBattleLinked() {
		if hookErr := e.battle.HandleAlarmDismissal(ctx, event, requesterID, now, method); hookErr != nil {
			logger.ErrorKV(ctx, "Battle dismissal hook failed", "alarm_id", id, "battle_id", result.BattleID, "error", hookErr)
		}
	}

	logger.InfoKV(ctx, "Alarm dismissed", "alarm_id", id, "method", method, "requester", requesterID)
	e.track(eventDismissed, analytics.Properties{analytics.PropertyMethod: string(method)})

	return err
}

// Snooze postpones the current occurrence by minutes, or by the alarm interval
// when minutes is not positive. It reports whether the snooze was applied:
// disabled snoozing, battle alarms without battle snoozing and exhausted
// counters leave the alarm untouched. Unknown alarms are ignored.
func (e *Engine) Snooze(ctx context.Context, id string, minutes int, requesterID string) (bool, error) {
	if minutes > domain.MaxSnoozeInterval {
		return false, fmt.Errorf("snooze alarm %q for %d minutes: %w", id, minutes, domain.ErrInvalidAlarmData)
	}

	if err := e.checkLimit(ctx, config.OperationSnooze); err != nil {
		return false, err
	}

	now := e.clock.Now()

	e.ioMu.Lock()
	e.mu.Lock()

	en, ok := e.entries[id]
	if !ok {
		e.mu.Unlock()
		e.ioMu.Unlock()

		logger.DebugKV(ctx, "Snooze of unknown alarm ignored", "alarm_id", id)

		return false, nil
	}

	if reason := e.snoozeBlocked(en); reason != "" {
		e.mu.Unlock()
		e.ioMu.Unlock()

		logger.InfoKV(ctx, "Snooze skipped", "alarm_id", id, "reason", reason)

		return false, nil
	}

	if minutes <= 0 {
		minutes = en.alarm.Snooze.IntervalMinutes
	}

	if minutes <= 0 {
		minutes = domain.DefaultSnoozeInterval
	}

	snoozed := en.alarm.Clone()
	snoozed.Snooze.Count++
	snoozed.Touch(now)

	en.alarm = snoozed
	en.transition(domain.StateSnoozed)
	en.snoozeUntil = now.Add(time.Duration(minutes) * time.Minute)
	e.claimWindow(ctx, en, now)

	event := e.newEvent(snoozed, domain.EventSnoozed, "", requesterID, now)
	event.SnoozeMinutes = minutes

	result := snoozed.Clone()
	fireAt := en.snoozeUntil
	partition := en.partition
	snapshot := e.snapshotLocked(partition)

	e.mu.Unlock()

	e.recordEvents(ctx, partition, event)

	err := e.store(ctx, partition, snapshot)

	e.scheduleAt(ctx, result, fireAt, true)

	e.ioMu.Unlock()

	if result.IsBattleLinked() {
		if hookErr := e.battle.HandleAlarmSnooze(ctx, event, requesterID, minutes); hookErr != nil {
			logger.ErrorKV(ctx, "Battle snooze hook failed", "alarm_id", id, "battle_id", result.BattleID, "error", hookErr)
		}
	}

	logger.InfoKV(ctx, "Alarm snoozed", "alarm_id", id, "minutes", minutes, "count", result.Snooze.Count, "max", result.Snooze.Max)
	e.track(eventSnoozed, nil)

	return true, err
}

// snoozeBlocked returns why the alarm may not snooze, or an empty string.
func (e *Engine) snoozeBlocked(en *entry) string {
	a := en.alarm

	switch {
	case !a.Enabled:
		return "alarm is disabled"
	case !a.Snooze.Enabled:
		return "snooze is disabled"
	case a.IsBattleLinked() && !e.settings.AllowBattleSnooze:
		return "battle alarms may not snooze"
	case a.Snooze.Count >= a.Snooze.Max:
		return "snooze limit reached"
	case !domain.CanTransition(en.state, domain.StateSnoozed):
		return "occurrence is already " + string(en.state)
	default:
		return ""
	}
}
