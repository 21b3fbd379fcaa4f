package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stallbook/stallbook/internal/logging"
)

// Scheduler invokes a callback at fixed local wall-clock times each day and
// whenever RunNow is called. The OS-level wake-up mechanism is outside this
// module; embedding applications that rely on one can simply call RunNow
// from their wake handler.
type Scheduler struct {
	clock  Clock
	times  []string // "HH:MM", sorted
	fn     func(ctx context.Context)
	logger logging.Logger
	runNow chan struct{}
}

// NewScheduler validates the "HH:MM" trigger times and returns a scheduler
// that calls fn on each of them.
func NewScheduler(clock Clock, times []string, fn func(ctx context.Context), logger logging.Logger) (*Scheduler, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("scheduler: no trigger times")
	}
	parsed := make([]string, len(times))
	copy(parsed, times)
	for _, tm := range parsed {
		if _, err := time.Parse("15:04", tm); err != nil {
			return nil, fmt.Errorf("scheduler: bad trigger time %q: %w", tm, err)
		}
	}
	sort.Strings(parsed)
	return &Scheduler{
		clock:  clock,
		times:  parsed,
		fn:     fn,
		logger: logger,
		runNow: make(chan struct{}, 1),
	}, nil
}

// RunNow requests an immediate run. Requests made while one is already
// pending coalesce.
func (s *Scheduler) RunNow() {
	select {
	case s.runNow <- struct{}{}:
	default:
	}
}

// Run loops until ctx is done, firing at the configured daily instants and
// on RunNow requests.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.nextTrigger(s.clock.Now())
		timer := time.NewTimer(next.Sub(s.clock.Now()))

		select {
		case <-timer.C:
			s.logger.Debug(ctx, "scheduled trigger fired", "at", next.Format(time.RFC3339))
			s.fn(ctx)
		case <-s.runNow:
			timer.Stop()
			s.logger.Debug(ctx, "on-demand trigger fired")
			s.fn(ctx)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextTrigger returns the earliest configured instant strictly after now.
func (s *Scheduler) nextTrigger(now time.Time) time.Time {
	loc := s.clock.Zone()
	local := now.In(loc)
	for _, tm := range s.times {
		parsed, _ := time.Parse("15:04", tm)
		candidate := time.Date(local.Year(), local.Month(), local.Day(),
			parsed.Hour(), parsed.Minute(), 0, 0, loc)
		if candidate.After(local) {
			return candidate
		}
	}
	// all of today's instants have passed; first one tomorrow
	parsed, _ := time.Parse("15:04", s.times[0])
	tomorrow := local.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, loc)
}
