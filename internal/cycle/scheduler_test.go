package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memMarkers struct {
	mu    sync.Mutex
	fired map[string]time.Time
}

func newMemMarkers() *memMarkers {
	return &memMarkers{fired: make(map[string]time.Time)}
}

func (m *memMarkers) LastFired(_ context.Context, cycle string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired[cycle], nil
}

func (m *memMarkers) MarkFired(_ context.Context, cycle string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fired[cycle] = at
	return nil
}

func TestFirstTickInitializesWithoutFiring(t *testing.T) {
	markers := newMemMarkers()
	fired := 0
	s := New(markers, time.Minute, []Trigger{{
		Name:  "reset",
		Every: 24 * time.Hour,
		Run:   func(context.Context) error { fired++; return nil },
	}}, zaptest.NewLogger(t))

	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Tick(context.Background())
	assert.Equal(t, 0, fired, "first startup must not replay the cycle")

	last, err := markers.LastFired(context.Background(), "reset")
	require.NoError(t, err)
	assert.True(t, last.Equal(now))
}

func TestFiresAfterWindowElapses(t *testing.T) {
	markers := newMemMarkers()
	fired := 0
	s := New(markers, time.Minute, []Trigger{{
		Name:  "reset",
		Every: 24 * time.Hour,
		Run:   func(context.Context) error { fired++; return nil },
	}}, zaptest.NewLogger(t))

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start
	s.now = func() time.Time { return now }

	s.Tick(context.Background()) // initialize
	now = start.Add(12 * time.Hour)
	s.Tick(context.Background())
	assert.Equal(t, 0, fired, "window has not elapsed")

	now = start.Add(24 * time.Hour)
	s.Tick(context.Background())
	assert.Equal(t, 1, fired)

	// Marker advanced, so an immediate retick does nothing.
	s.Tick(context.Background())
	assert.Equal(t, 1, fired)

	now = start.Add(48 * time.Hour)
	s.Tick(context.Background())
	assert.Equal(t, 2, fired)
}

func TestFailedTriggerRetriesNextTick(t *testing.T) {
	markers := newMemMarkers()
	calls := 0
	s := New(markers, time.Minute, []Trigger{{
		Name:  "accrual",
		Every: time.Hour,
		Run: func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("store unavailable")
			}
			return nil
		},
	}}, zaptest.NewLogger(t))

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start
	s.now = func() time.Time { return now }

	s.Tick(context.Background()) // initialize
	now = start.Add(time.Hour)
	s.Tick(context.Background())
	assert.Equal(t, 1, calls)

	// Failure left the marker in place, so the next tick retries.
	now = start.Add(time.Hour + time.Minute)
	s.Tick(context.Background())
	assert.Equal(t, 2, calls)

	last, err := markers.LastFired(context.Background(), "accrual")
	require.NoError(t, err)
	assert.True(t, last.Equal(now), "marker advances only after success")
}

func TestIndependentTriggers(t *testing.T) {
	markers := newMemMarkers()
	var daily, biweekly int
	s := New(markers, time.Minute, []Trigger{
		{Name: "reset", Every: 24 * time.Hour, Run: func(context.Context) error { daily++; return nil }},
		{Name: "accrual", Every: 14 * 24 * time.Hour, Run: func(context.Context) error { biweekly++; return nil }},
	}, zaptest.NewLogger(t))

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start
	s.now = func() time.Time { return now }

	s.Tick(context.Background()) // initialize both
	for day := 1; day <= 14; day++ {
		now = start.Add(time.Duration(day) * 24 * time.Hour)
		s.Tick(context.Background())
	}

	assert.Equal(t, 14, daily)
	assert.Equal(t, 1, biweekly)
}

func TestRunStopsOnCancel(t *testing.T) {
	markers := newMemMarkers()
	s := New(markers, time.Millisecond, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
