package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestGetSetExpiry(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}
	c := New[int](time.Minute).WithClock(clk.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clk.Advance(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clk.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestGetOrLoadCollapsesConcurrentLoads(t *testing.T) {
	c := New[string](time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "v", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "v", v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	_, hit, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) {
		t.Fatal("loader called on hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New[int](time.Minute)
	boom := errors.New("boom")

	_, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, hit, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestCleanup(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	c := New[int](time.Second).WithClock(clk.Now)
	c.Set("a", 1)
	c.Set("b", 2)
	clk.Advance(2 * time.Second)
	c.Cleanup()
	assert.Equal(t, 0, c.Len())
}

func TestGetOrLoadSurvivesLeaderCancellation(t *testing.T) {
	c := New[int](time.Minute)
	slowLoad := func(ctx context.Context) (int, error) {
		select {
		case <-time.After(300 * time.Millisecond):
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelA()
	ctxB, cancelB := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelB()

	var errA error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, errA = c.GetOrLoad(ctxA, "underlying:ABC", slowLoad)
	}()
	time.Sleep(20 * time.Millisecond)

	v, hit, errB := c.GetOrLoad(ctxB, "underlying:ABC", slowLoad)
	<-done

	assert.ErrorIs(t, errA, context.DeadlineExceeded)
	require.NoError(t, errB)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	cached, ok := c.Get("underlying:ABC")
	require.True(t, ok)
	assert.Equal(t, 42, cached)
}

func TestGetOrLoadHonoursLoadTimeout(t *testing.T) {
	c := New[int](time.Minute).WithLoadTimeout(30 * time.Millisecond)
	var calls atomic.Int32
	_, _, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load(), "a timed-out flight is retried once")
}
