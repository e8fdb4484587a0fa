package storage

import (
	"context"
	"slices"
	"sync"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// MemoryRepository keeps partitions in process memory.
// Error fields let tests inject failures.
type MemoryRepository struct {
	mu     sync.Mutex
	alarms map[string][]*domain.Alarm
	events map[string][]domain.Event

	// RetrieveErr is returned by RetrieveAlarms when set.
	RetrieveErr error
	// StoreErr is returned by StoreAlarms when set.
	StoreErr error
	// EventsErr is returned by the event methods when set.
	EventsErr error

	retrieveCalls int
	storeCalls    int
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		alarms: make(map[string][]*domain.Alarm),
		events: make(map[string][]domain.Event),
	}
}

// Seed places alarms in a partition without counting a store call.
func (m *MemoryRepository) Seed(ownerID string, alarms ...*domain.Alarm) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alarms[ownerID] = cloneAlarms(alarms)
}

// RetrieveAlarms returns copies of the partition alarms.
func (m *MemoryRepository) RetrieveAlarms(_ context.Context, ownerID string) ([]*domain.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retrieveCalls++

	if m.RetrieveErr != nil {
		return nil, m.RetrieveErr
	}

	return cloneAlarms(m.alarms[ownerID]), nil
}

// StoreAlarms replaces the partition alarms.
func (m *MemoryRepository) StoreAlarms(_ context.Context, alarms []*domain.Alarm, ownerID string) error {
	if ownerID == "" {
		return ErrInvalidOwner
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.storeCalls++

	if m.StoreErr != nil {
		return m.StoreErr
	}

	m.alarms[ownerID] = cloneAlarms(alarms)

	return nil
}

// StoreAlarmEvents appends to the partition history.
func (m *MemoryRepository) StoreAlarmEvents(_ context.Context, events []domain.Event, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EventsErr != nil {
		return m.EventsErr
	}

	m.events[ownerID] = append(m.events[ownerID], events...)

	return nil
}

// RetrieveAlarmEvents returns a copy of the partition history.
func (m *MemoryRepository) RetrieveAlarmEvents(_ context.Context, ownerID string) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EventsErr != nil {
		return nil, m.EventsErr
	}

	result := slices.Clone(m.events[ownerID])
	if result == nil {
		result = []domain.Event{}
	}

	return result, nil
}

// Stored returns copies of the alarms last stored under ownerID.
func (m *MemoryRepository) Stored(ownerID string) []*domain.Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()

	return cloneAlarms(m.alarms[ownerID])
}

// StoreCalls returns how many times StoreAlarms was called.
func (m *MemoryRepository) StoreCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.storeCalls
}

// RetrieveCalls returns how many times RetrieveAlarms was called.
func (m *MemoryRepository) RetrieveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.retrieveCalls
}

func cloneAlarms(alarms []*domain.Alarm) []*domain.Alarm {
	result := make([]*domain.Alarm, 0, len(alarms))
	for _, a := range alarms {
		result = append(result, a.Clone())
	}

	return result
}
