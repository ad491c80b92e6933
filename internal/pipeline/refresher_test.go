package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeRefresher) RefreshWatchlist(_ context.Context, id string) (domain.RefreshSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return domain.RefreshSummary{}, errors.New("boom")
	}
	return domain.RefreshSummary{WatchlistID: id, Succeeded: 1}, nil
}

func (f *fakeRefresher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakePruner struct {
	mu   sync.Mutex
	asOf []time.Time
}

func (p *fakePruner) DeleteExpired(_ context.Context, asOf time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asOf = append(p.asOf, asOf)
	return 2, nil
}

func TestRefresherRunContinuesPastFailures(t *testing.T) {
	svc := &fakeRefresher{fail: map[string]bool{"a": true}}
	pruner := &fakePruner{}
	r := NewRefresher(svc, pruner, []string{"a", "b"}, discardLogger())
	r.now = func() time.Time { return asOf }

	r.Run(context.Background())

	assert.Equal(t, []string{"a", "b"}, svc.Calls())
	assert.Equal(t, []time.Time{asOf}, pruner.asOf)
}

func TestRefresherRunLoopStopsOnCancel(t *testing.T) {
	svc := &fakeRefresher{}
	r := NewRefresher(svc, nil, []string{"core"}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.RunLoop(ctx, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool { return len(svc.Calls()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("refresher loop did not stop")
	}
}
