package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallbook/stallbook/internal/logging"
)

type fakePinger struct {
	up atomic.Bool
}

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.up.Load() {
		return nil
	}
	return errors.New("unreachable")
}

func TestMonitor_TransitionsReachSubscribers(t *testing.T) {
	p := &fakePinger{}
	m := NewMonitor(p, 10*time.Millisecond, logging.NewDefault())
	sub := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	p.up.Store(true)
	select {
	case online := <-sub:
		assert.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("no online transition observed")
	}
	assert.True(t, m.Online())

	p.up.Store(false)
	select {
	case online := <-sub:
		assert.False(t, online)
	case <-time.After(time.Second):
		t.Fatal("no offline transition observed")
	}
	assert.False(t, m.Online())
}

func TestMonitor_StartsOffline(t *testing.T) {
	m := NewMonitor(&fakePinger{}, time.Minute, logging.NewDefault())
	require.False(t, m.Online())
}

func TestMonitor_NoRepeatSignalsWithoutTransition(t *testing.T) {
	p := &fakePinger{}
	p.up.Store(true)
	m := NewMonitor(p, 5*time.Millisecond, logging.NewDefault())
	sub := m.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("no initial online transition")
	}

	// status stays up; no further transitions should arrive
	select {
	case <-sub:
		t.Fatal("unexpected repeated transition")
	case <-time.After(50 * time.Millisecond):
	}
}
