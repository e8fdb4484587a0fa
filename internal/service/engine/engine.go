package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oshokin/alarm-engine/internal/analytics"
	"github.com/oshokin/alarm-engine/internal/battle"
	"github.com/oshokin/alarm-engine/internal/clock"
	"github.com/oshokin/alarm-engine/internal/config"
	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
	"github.com/oshokin/alarm-engine/internal/logger"
	"github.com/oshokin/alarm-engine/internal/notification"
	"github.com/oshokin/alarm-engine/internal/ratelimit"
	"github.com/oshokin/alarm-engine/internal/repository/storage"
)

// Dependencies are the collaborators of the engine.
// Only Repository is required.
type Dependencies struct {
	Repository storage.Repository
	Limiter    ratelimit.Limiter
	Notifier   notification.Scheduler
	Battle     battle.Adapter
	Analytics  analytics.Emitter
	Clock      clock.Clock
	// NewID generates alarm and event identifiers.
	NewID func() string
}

// Settings tune the engine behavior.
type Settings struct {
	// ScanInterval is the trigger scan period.
	ScanInterval time.Duration
	// DefaultOwner is assigned to alarms created without an owner.
	DefaultOwner string
	// AllowBattleSnooze lets battle-linked alarms snooze when their policy allows it.
	AllowBattleSnooze bool
	// Budgets maps operation classes to rate-limit budgets.
	Budgets map[string]config.Budget
	// ScanLogOptions are applied to the logger of the trigger scan.
	ScanLogOptions []zap.Option
}

// DefaultSettings returns the settings of a default configuration.
func DefaultSettings() Settings {
	return Settings{
		ScanInterval:      config.DefaultScanInterval,
		DefaultOwner:      domain.DefaultOwnerID,
		AllowBattleSnooze: true,
		Budgets:           config.DefaultBudgets(),
	}
}

// SettingsFromConfig maps engine configuration to settings.
func SettingsFromConfig(cfg *config.Engine) Settings {
	settings := Settings{
		ScanInterval:      cfg.ScanInterval,
		DefaultOwner:      cfg.DefaultOwner,
		AllowBattleSnooze: cfg.AllowBattleSnooze,
		Budgets:           cfg.RateLimits,
	}

	if level, ok := logger.ParseLogLevel(cfg.ScanLogLevel); ok && cfg.ScanLogLevel != "" {
		settings.ScanLogOptions = append(settings.ScanLogOptions, logger.WithLevel(level))
	}

	return settings
}

const (
	// dedupeCacheSize is the freecache minimum.
	dedupeCacheSize = 512 * 1024
	// dedupeTTLSeconds outlives one match window.
	dedupeTTLSeconds = 120
	// matchWindowLayout identifies a match window down to the minute.
	matchWindowLayout = "2006-01-02T15:04"
)

var errRepositoryRequired = errors.New("engine repository is required")

// entry is the working-set record of one alarm.
type entry struct {
	alarm *domain.Alarm
	// partition is the storage owner key the alarm is persisted under.
	partition string
	state     domain.State
	// snoozeUntil is the re-trigger deadline of a snoozed alarm.
	snoozeUntil time.Time
}

// Engine is the alarm lifecycle engine.
type Engine struct {
	repo      storage.Repository
	limiter   ratelimit.Limiter
	notifier  notification.Scheduler
	battle    battle.Adapter
	analytics analytics.Emitter
	clock     clock.Clock
	newID     func() string
	settings  Settings

	signals *bus
	// fired remembers match windows that already produced a trigger.
	fired *freecache.Cache

	// mu guards the working set and the scan loop handles.
	mu      sync.Mutex
	entries map[string]*entry
	cancel  context.CancelFunc
	done    chan struct{}

	// ioMu orders storage and notifier I/O of mutating operations.
	// It is always taken before mu, and mu is released before any I/O.
	// Battle hooks run after both are released.
	ioMu sync.Mutex
}

// New creates an engine. Missing optional collaborators get in-memory or no-op defaults.
func New(deps Dependencies, settings Settings) (*Engine, error) {
	if deps.Repository == nil {
		return nil, errRepositoryRequired
	}

	e := &Engine{
		repo:      deps.Repository,
		limiter:   deps.Limiter,
		notifier:  deps.Notifier,
		battle:    deps.Battle,
		analytics: deps.Analytics,
		clock:     deps.Clock,
		newID:     deps.NewID,
		settings:  settings,
		signals:   newBus(),
		fired:     freecache.NewCache(dedupeCacheSize),
		entries:   make(map[string]*entry),
	}

	if e.limiter == nil {
		e.limiter = ratelimit.NewMemoryLimiter()
	}

	if e.notifier == nil {
		e.notifier = notification.NewMemoryScheduler()
	}

	if e.battle == nil {
		e.battle = battle.Disabled{}
	}

	if e.analytics == nil {
		e.analytics = analytics.Nop{}
	}

	if e.clock == nil {
		e.clock = &clock.Real{Location: time.Local}
	}

	if e.newID == nil {
		e.newID = uuid.NewString
	}

	if e.settings.ScanInterval <= 0 {
		e.settings.ScanInterval = config.DefaultScanInterval
	}

	if e.settings.DefaultOwner == "" {
		e.settings.DefaultOwner = domain.DefaultOwnerID
	}

	return e, nil
}

// Start runs the periodic trigger scan. It is a no-op when the scan is already running.
// The scan outlives ctx cancellation and ends with Stop.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return
	}

	scanCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	scanCtx = logger.WithName(scanCtx, "trigger-scan")

	if len(e.settings.ScanLogOptions) > 0 {
		scanCtx = logger.WithOptions(scanCtx, e.settings.ScanLogOptions...)
	}

	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(scanCtx, e.done)

	logger.InfoKV(ctx, "Trigger scan started", "interval", e.settings.ScanInterval)
}

// Stop cancels the trigger scan and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Running reports whether the trigger scan is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cancel != nil
}

// Close stops the scan and ends every signal subscription.
func (e *Engine) Close() {
	e.Stop()
	e.signals.closeAll()
}

// Subscribe returns a subscription to triggered and security signals.
func (e *Engine) Subscribe() *Subscription {
	return e.signals.subscribe()
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.settings.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Trigger scan stopped")

			return
		case <-ticker.C:
			e.ScanOnce(ctx)
		}
	}
}

// snapshotLocked returns copies of the alarms stored under partition ordered by creation.
func (e *Engine) snapshotLocked(partition string) []*domain.Alarm {
	result := make([]*domain.Alarm, 0, len(e.entries))

	for _, en := range e.entries {
		if en.partition == partition {
			result = append(result, en.alarm.Clone())
		}
	}

	sortAlarms(result)

	return result
}

// collectLocked returns copies of the alarms accepted by keep.
func (e *Engine) collectLocked(keep func(*entry) bool) []*domain.Alarm {
	var result []*domain.Alarm

	for _, en := range e.entries {
		if keep(en) {
			result = append(result, en.alarm.Clone())
		}
	}

	sortAlarms(result)

	return result
}

func sortAlarms(alarms []*domain.Alarm) {
	slices.SortFunc(alarms, func(a, b *domain.Alarm) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})
}

// transition moves the entry to the target state when the lifecycle allows it.
func (en *entry) transition(to domain.State) bool {
	if !domain.CanTransition(en.state, to) {
		return false
	}

	en.state = to

	if to != domain.StateSnoozed {
		en.snoozeUntil = time.Time{}
	}

	return true
}

// store persists a partition snapshot.
func (e *Engine) store(ctx context.Context, partition string, snapshot []*domain.Alarm) error {
	if err := e.repo.StoreAlarms(ctx, snapshot, partition); err != nil {
		logger.ErrorKV(ctx, "Failed to persist alarms", "partition", partition, "error", err)

		return fmt.Errorf("%w: persist alarms of %q: %w", domain.ErrStorageFailure, partition, err)
	}

	return nil
}

// recordEvents appends history records. Failures are logged only.
func (e *Engine) recordEvents(ctx context.Context, partition string, events ...domain.Event) {
	if len(events) == 0 {
		return
	}

	if err := e.repo.StoreAlarmEvents(ctx, events, partition); err != nil {
		logger.WarnKV(ctx, "Failed to record alarm events", "partition", partition, "count", len(events), "error", err)
	}
}

func (e *Engine) newEvent(a *domain.Alarm, kind domain.EventKind, method domain.Method, actor string, at time.Time) domain.Event {
	if actor == "" {
		actor = a.OwnerID
	}

	return domain.Event{
		ID:         e.newID(),
		AlarmID:    a.ID,
		Kind:       kind,
		Method:     method,
		OccurredAt: at,
		OwnerID:    actor,
	}
}

// schedule registers the next occurrence of an enabled alarm.
func (e *Engine) schedule(ctx context.Context, a *domain.Alarm, from time.Time) {
	if !a.Enabled {
		return
	}

	fireAt, ok := a.NextOccurrence(from)
	if !ok {
		return
	}

	e.scheduleAt(ctx, a, fireAt, false)
}

func (e *Engine) scheduleAt(ctx context.Context, a *domain.Alarm, fireAt time.Time, snoozed bool) {
	payload := notification.Payload{
		OwnerID:    a.OwnerID,
		Label:      a.Label,
		VoiceMood:  string(a.VoiceMood),
		Sound:      a.Sound,
		Difficulty: string(a.Difficulty),
		BattleID:   a.BattleID,
		Snoozed:    snoozed,
	}

	if err := e.notifier.Schedule(ctx, a.ID, fireAt, payload); err != nil {
		logger.ErrorKV(ctx, "Failed to schedule notification", "alarm_id", a.ID, "fire_at", fireAt, "error", err)
	}
}

func (e *Engine) cancelNotification(ctx context.Context, alarmID string) {
	if err := e.notifier.Cancel(ctx, alarmID); err != nil {
		logger.ErrorKV(ctx, "Failed to cancel notification", "alarm_id", alarmID, "error", err)
	}
}

func (e *Engine) track(name string, props analytics.Properties) {
	e.analytics.Track(name, props)
}

// security publishes a security event signal and tracks it.
func (e *Engine) security(ctx context.Context, event, source string) {
	logger.WarnKV(ctx, "Alarm security event", "event", event, "source", source)

	e.signals.publish(Signal{
		Kind:   SignalSecurityEvent,
		Event:  event,
		Source: source,
		At:     e.clock.Now(),
	})

	e.track(securityEventPrefix+event, analytics.Properties{analytics.PropertySource: source})
}

// checkLimit consumes one call of the operation budget. Limiter errors fail open.
func (e *Engine) checkLimit(ctx context.Context, operation string) error {
	budget, ok := e.settings.Budgets[operation]
	if !ok || budget.MaxCalls <= 0 || budget.Window <= 0 {
		return nil
	}

	allowed, err := e.limiter.CheckLimit(ctx, operation, budget.MaxCalls, budget.Window)
	if err != nil {
		logger.WarnKV(ctx, "Rate limiter is unavailable, allowing call", "operation", operation, "error", err)

		return nil
	}

	if !allowed {
		e.security(ctx, SecurityRateLimitExceeded, operation)

		return fmt.Errorf("%s: %w", operation, domain.ErrRateLimitExceeded)
	}

	return nil
}

// Analytics event names.
const (
	eventLoaded         = "alarms_loaded"
	eventLoadFailed     = "alarms_load_failed"
	eventSaved          = "alarms_saved"
	eventCreated        = "alarm_created"
	eventUpdated        = "alarm_updated"
	eventDeleted        = "alarm_deleted"
	eventToggled        = "alarm_toggled"
	eventTriggered      = "alarm_triggered"
	eventDismissed      = "alarm_dismissed"
	eventSnoozed        = "alarm_snoozed"
	eventBattleCreated  = "battle_alarm_created"
	eventBattleUnlinked = "battle_alarm_unlinked"

	securityEventPrefix = "security_"
)
