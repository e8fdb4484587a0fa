package clock

import (
	"sync"
	"time"
)

// Clock returns the current local time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in Location.
type Real struct {
	// Location is the zone alarm times are interpreted in.
	Location *time.Location
}

// NewReal creates a clock for the named IANA zone. Empty or "Local" uses the system zone.
func NewReal(zone string) (*Real, error) {
	if zone == "" || zone == "Local" {
		return &Real{Location: time.Local}, nil
	}

	location, err := time.LoadLocation(zone)
	if err != nil {
		return nil, err
	}

	return &Real{Location: location}, nil
}

// Now returns the current time in the configured location.
func (r *Real) Now() time.Time {
	if r.Location == nil {
		return time.Now()
	}

	return time.Now().In(r.Location)
}

// Fake is a manually driven clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a fake clock pinned at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the pinned time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Set pins the clock at now.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}
