// Package schedule supplies wall-clock time in the application's fixed
// named time zone, and the trigger that makes lifecycle recalculation run
// at two daily instants plus on demand.
package schedule

import (
	"fmt"
	"sync"
	"time"
)

// Clock abstracts current time so the lifecycle rules can be tested at
// chosen instants. All wall-clock arithmetic happens in Zone().
type Clock interface {
	Now() time.Time
	Zone() *time.Location
}

// RealClock reads the system time in a fixed named zone.
type RealClock struct {
	loc *time.Location
}

func NewRealClock(zoneName string) (*RealClock, error) {
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", zoneName, err)
	}
	return &RealClock{loc: loc}, nil
}

func (c *RealClock) Now() time.Time       { return time.Now().In(c.loc) }
func (c *RealClock) Zone() *time.Location { return c.loc }

// FakeClock is a settable clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now, loc: now.Location()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Zone() *time.Location { return c.loc }

func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
