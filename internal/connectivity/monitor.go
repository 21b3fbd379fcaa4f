// Package connectivity watches remote reachability and exposes it as a
// subscribe-able boolean stream. Transition to online is what triggers the
// sync coordinator to flush pending writes.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/stallbook/stallbook/internal/logging"
)

// Pinger is the probe target; remote.Store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes the remote on an interval and publishes online/offline
// transitions. The process starts offline until a probe succeeds.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	mu     sync.Mutex
	online bool
	subs   []chan bool
}

func NewMonitor(pinger Pinger, interval time.Duration, logger logging.Logger) *Monitor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		timeout:  3 * time.Second,
		logger:   logger,
	}
}

// Online reports the last observed status.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel receiving each status transition. The channel
// has a buffer of one; a slow subscriber sees only the latest transition.
func (m *Monitor) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run probes immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ticker.C:
			m.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(probeCtx)
	cancel()
	m.setOnline(ctx, err == nil)
}

func (m *Monitor) setOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	subs := m.subs
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.logger.Info(ctx, "connectivity restored")
	} else {
		m.logger.Info(ctx, "connectivity lost")
	}
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
			// replace a stale pending value with the latest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- online:
			default:
			}
		}
	}
}
