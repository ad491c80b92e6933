package quote

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource returns queued errors first, then succeeds.
type fakeSource struct {
	name  string
	mu    sync.Mutex
	errs  []error
	calls int
	delay time.Duration
	price float64
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) next(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) GetUnderlying(ctx context.Context, symbol string) (domain.Underlying, error) {
	if err := f.next(ctx); err != nil {
		return domain.Underlying{}, err
	}
	return domain.Underlying{Symbol: symbol, LastPrice: f.price, AsOf: time.Now()}, nil
}

func (f *fakeSource) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	if err := f.next(ctx); err != nil {
		return nil, err
	}
	return []time.Time{time.Date(2026, 4, 17, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeSource) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]domain.OptionContract, error) {
	if err := f.next(ctx); err != nil {
		return nil, err
	}
	return []domain.OptionContract{{Symbol: symbol, Expiration: expiration, Strike: 95, OptionType: domain.OptionPut, Bid: 1, Ask: 1.1}}, nil
}

// mapCache is an in-memory domain.QuoteCache.
type mapCache struct {
	mu   sync.Mutex
	data map[string]any
	gets int
}

func newMapCache() *mapCache { return &mapCache{data: map[string]any{}} }

func (m *mapCache) load(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	v, ok := m.data[key]
	return v, ok
}

func (m *mapCache) store(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = v
}

func (m *mapCache) GetUnderlying(_ context.Context, symbol string) (domain.Underlying, error) {
	v, ok := m.load("u:" + symbol)
	if !ok {
		return domain.Underlying{}, domain.ErrNotFound
	}
	return v.(domain.Underlying), nil
}

func (m *mapCache) SetUnderlying(_ context.Context, u domain.Underlying, _ time.Duration) error {
	m.store("u:"+u.Symbol, u)
	return nil
}

func (m *mapCache) GetExpirations(_ context.Context, symbol string) ([]time.Time, error) {
	v, ok := m.load("e:" + symbol)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v.([]time.Time), nil
}

func (m *mapCache) SetExpirations(_ context.Context, symbol string, exps []time.Time, _ time.Duration) error {
	m.store("e:"+symbol, exps)
	return nil
}

func (m *mapCache) GetChain(_ context.Context, symbol string, exp time.Time) ([]domain.OptionContract, error) {
	v, ok := m.load("c:" + symbol + exp.Format("2006-01-02"))
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v.([]domain.OptionContract), nil
}

func (m *mapCache) SetChain(_ context.Context, symbol string, exp time.Time, chain []domain.OptionContract, _ time.Duration) error {
	m.store("c:"+symbol+exp.Format("2006-01-02"), chain)
	return nil
}
