package notification

import (
	"context"
	"sync"
	"time"
)

// Payload is the content delivered with a notification.
type Payload struct {
	OwnerID    string `json:"owner_id,omitempty"`
	Label      string `json:"label"`
	VoiceMood  string `json:"voice_mood"`
	Sound      string `json:"sound"`
	Difficulty string `json:"difficulty"`
	BattleID   string `json:"battle_id,omitempty"`
	// Snoozed is set when the notification is a snooze reschedule.
	Snoozed bool `json:"snoozed,omitempty"`
}

// Scheduler schedules and cancels alarm notifications.
type Scheduler interface {
	Schedule(ctx context.Context, alarmID string, fireAt time.Time, payload Payload) error
	Cancel(ctx context.Context, alarmID string) error
}

// Entry is a pending notification.
type Entry struct {
	AlarmID string
	FireAt  time.Time
	Payload Payload
}

// MemoryScheduler keeps pending notifications in memory.
type MemoryScheduler struct {
	// ScheduleErr and CancelErr, when set, are returned by every call.
	ScheduleErr error
	CancelErr   error

	mu        sync.Mutex
	pending   map[string]Entry
	schedules int
	cancels   int
}

// NewMemoryScheduler creates an empty scheduler.
func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{pending: make(map[string]Entry)}
}

// Schedule replaces the pending notification of alarmID.
func (s *MemoryScheduler) Schedule(_ context.Context, alarmID string, fireAt time.Time, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules++

	if s.ScheduleErr != nil {
		return s.ScheduleErr
	}

	s.pending[alarmID] = Entry{
		AlarmID: alarmID,
		FireAt:  fireAt,
		Payload: payload,
	}

	return nil
}

// Cancel drops the pending notification of alarmID.
func (s *MemoryScheduler) Cancel(_ context.Context, alarmID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancels++

	if s.CancelErr != nil {
		return s.CancelErr
	}

	delete(s.pending, alarmID)

	return nil
}

// Pending returns the pending notification of alarmID.
func (s *MemoryScheduler) Pending(alarmID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[alarmID]

	return entry, ok
}

// ScheduleCalls returns how many times Schedule was called.
func (s *MemoryScheduler) ScheduleCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.schedules
}

// CancelCalls returns how many times Cancel was called.
func (s *MemoryScheduler) CancelCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancels
}
