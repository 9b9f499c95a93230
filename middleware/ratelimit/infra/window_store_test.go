package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transcribe-gateway/middleware/ratelimit/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestWindowStore_AllowsUpToLimitThenDenies(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(30, time.Minute, WithClock(clock.Now))
	lim := s.Get("1.2.3.4")

	for i := 1; i <= 30; i++ {
		require.Truef(t, lim.Allow(), "request %d should pass", i)
	}
	require.False(t, lim.Allow(), "31st request should be denied")
}

func TestWindowStore_DeniedRequestsStillCount(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(2, time.Minute, WithClock(clock.Now))
	lim := s.Get("k")

	for i := 0; i < 5; i++ {
		lim.Allow()
	}
	count, ok := s.Count("k")
	require.True(t, ok)
	require.Equal(t, 5, count)
}

func TestWindowStore_WindowBoundary(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(1, time.Minute, WithClock(clock.Now))
	lim := s.Get("k")

	require.True(t, lim.Allow())

	// exatamente 60000ms depois ainda é a mesma janela
	clock.Advance(time.Minute)
	require.False(t, lim.Allow())

	// 60001ms: janela reinicia com count=1, mesmo estando esgotada
	clock.Advance(time.Millisecond)
	require.True(t, lim.Allow())
	count, _ := s.Count("k")
	require.Equal(t, 1, count)
}

func TestWindowStore_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(3, time.Minute, WithClock(clock.Now))

	a := s.Get("client-a")
	for i := 0; i < 10; i++ {
		a.Allow()
	}
	require.False(t, a.Allow())

	b := s.Get("client-b")
	require.True(t, b.Allow())
	count, ok := s.Count("client-b")
	require.True(t, ok)
	require.Equal(t, 1, count)
}

func TestWindowStore_RetryAfterCountsDownToWindowEnd(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(1, time.Minute, WithClock(clock.Now))
	lim := s.Get("k")

	hinter, ok := lim.(domain.RetryHinter)
	require.True(t, ok)
	require.Zero(t, hinter.RetryAfter(), "no window yet")

	require.True(t, lim.Allow())
	clock.Advance(45 * time.Second)
	require.False(t, lim.Allow())
	require.Equal(t, 15*time.Second, hinter.RetryAfter())

	clock.Advance(16 * time.Second)
	require.Zero(t, hinter.RetryAfter(), "expired window has nothing to wait for")
}

func TestWindowStore_CleanupRemovesOnlyExpiredWindows(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(5, time.Minute, WithClock(clock.Now), WithCleanupEvery(0))

	s.Get("old").Allow()
	clock.Advance(30 * time.Second)
	s.Get("fresh").Allow()
	clock.Advance(31 * time.Second)

	require.Equal(t, 1, s.Cleanup())
	require.Equal(t, 1, s.Len())

	_, ok := s.Count("old")
	require.False(t, ok)
	_, ok = s.Count("fresh")
	require.True(t, ok)
}

func TestWindowStore_ConcurrentHitsNeverExceedLimit(t *testing.T) {
	s := NewWindowStore(30, time.Minute)
	lim := s.Get("shared")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 30, allowed)
	count, _ := s.Count("shared")
	require.Equal(t, 100, count)
}

func TestWindowStore_JanitorStopsWithContext(t *testing.T) {
	clock := newFakeClock()
	s := NewWindowStore(1, time.Millisecond, WithClock(clock.Now), WithCleanupEvery(time.Millisecond))
	s.Get("k").Allow()
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	s.StartJanitor(ctx)

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
}
