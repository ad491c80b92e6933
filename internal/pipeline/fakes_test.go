package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/store/memory"
)

var asOf = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func daysOut(n int) time.Time {
	return domain.DateOnly(asOf).AddDate(0, 0, n)
}

// fakeMarket is a scripted domain.QuoteProvider. Errors queued per symbol and
// op are returned before the stored data.
type fakeMarket struct {
	mu          sync.Mutex
	prices      map[string]float64
	expirations map[string][]time.Time
	chains      map[string][]domain.OptionContract
	errs        map[string][]error
	chainDelay  time.Duration
	calls       map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		prices:      make(map[string]float64),
		expirations: make(map[string][]time.Time),
		chains:      make(map[string][]domain.OptionContract),
		errs:        make(map[string][]error),
		calls:       make(map[string]int),
	}
}

func (f *fakeMarket) failWith(symbol, op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[symbol+":"+op] = append(f.errs[symbol+":"+op], errs...)
}

func (f *fakeMarket) next(symbol, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := symbol + ":" + op
	f.calls[key]++
	q := f.errs[key]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	// The last queued error repeats forever.
	if len(q) > 1 {
		f.errs[key] = q[1:]
	}
	return err
}

func (f *fakeMarket) Calls(symbol, op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol+":"+op]
}

func (f *fakeMarket) GetUnderlying(_ context.Context, symbol string) (domain.Underlying, error) {
	if err := f.next(symbol, "underlying"); err != nil {
		return domain.Underlying{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[symbol]
	if !ok {
		return domain.Underlying{}, domain.ErrNotFound
	}
	return domain.Underlying{Symbol: symbol, LastPrice: p, AsOf: asOf}, nil
}

func (f *fakeMarket) GetExpirations(_ context.Context, symbol string) ([]time.Time, error) {
	if err := f.next(symbol, "expirations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expirations[symbol], nil
}

func (f *fakeMarket) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]domain.OptionContract, error) {
	if err := f.next(symbol, "chain"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	delay := f.chainDelay
	chain := append([]domain.OptionContract(nil), f.chains[symbol]...)
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for i := range chain {
		chain[i].Expiration = expiration
	}
	return chain, nil
}

// nominalPut is the 31-DTE 95 strike put on a 100 stock.
func nominalPut(symbol string) domain.OptionContract {
	return domain.OptionContract{
		Symbol:            symbol,
		Strike:            95,
		OptionType:        domain.OptionPut,
		Bid:               1.45,
		Ask:               1.55,
		Volume:            500,
		OpenInterest:      1000,
		ImpliedVolatility: 0.30,
	}
}

func (f *fakeMarket) listNominal(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = 100
	f.expirations[symbol] = []time.Time{daysOut(3), daysOut(31), daysOut(66)}
	f.chains[symbol] = []domain.OptionContract{nominalPut(symbol)}
}

// failingStore rejects every write.
type failingStore struct {
	*memory.OpportunityStore
	mu    sync.Mutex
	calls int
}

func (s *failingStore) UpsertBatch(context.Context, []domain.Opportunity) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return 0, domain.ErrStoreWrite
}
