package engine

import (
	"sync"
	"time"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// SignalKind names a process-wide signal.
type SignalKind string

// Signal kinds.
const (
	SignalTriggered     SignalKind = "alarm-triggered"
	SignalSecurityEvent SignalKind = "alarm-security-event"
)

// Security event names.
const (
	SecurityAccessDenied       = "access_denied"
	SecurityRateLimitExceeded  = "rate_limit_exceeded"
	SecurityInvalidAlarm       = "invalid_alarm_discarded"
	SecurityInvalidBattleAlarm = "invalid_battle_alarm"
)

// Signal is published to subscribers for observability.
type Signal struct {
	Kind SignalKind
	// Alarm is set for triggered signals.
	Alarm *domain.Alarm
	// Event and Source are set for security events.
	Event  string
	Source string
	At     time.Time
}

const subscriptionBufferSize = 16

type bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newBus() *bus {
	return &bus{subs: make(map[*Subscription]struct{})}
}

func (b *bus) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		bus: b,
		c:   make(chan Signal, subscriptionBufferSize),
	}
	b.subs[sub] = struct{}{}

	return sub
}

func (b *bus) publish(signal Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.c <- signal:
		default:
			// Subscriber is not keeping up.
			sub.close()
		}
	}
}

func (b *bus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		sub.close()
	}
}

// Subscription receives signals until it is closed or falls behind.
type Subscription struct {
	bus  *bus
	c    chan Signal
	once sync.Once
}

// C returns the signal channel. It is closed when the subscription ends.
func (sub *Subscription) C() <-chan Signal {
	return sub.c
}

// Close ends the subscription.
func (sub *Subscription) Close() error {
	sub.bus.mu.Lock()
	defer sub.bus.mu.Unlock()

	sub.close()

	return nil
}

func (sub *Subscription) close() {
	sub.once.Do(func() {
		close(sub.c)
	})

	delete(sub.bus.subs, sub)
}
