package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/optionscan/internal/analysis"
	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/greeks"
)

// unit is one (symbol, target DTE) pair of one run. Its stages run strictly
// in order and the store write is always last.
type unit struct {
	o        *Orchestrator
	provider domain.QuoteProvider
	req      domain.ScanRequest
	rules    analysis.LiquidityRules
	asOf     time.Time
	logger   *slog.Logger

	res domain.UnitResult
}

func (u *unit) transition(s domain.UnitState) {
	u.res.State = s
	u.logger.Debug("unit state", slog.String("state", string(s)))
}

// run drives the unit to a terminal state. It never returns an error; the
// outcome is carried in the result.
func (u *unit) run(ctx context.Context) domain.UnitResult {
	ctx, cancel := context.WithTimeout(ctx, u.o.cfg.UnitTimeout)
	defer cancel()

	u.transition(domain.StatePending)
	if err := u.execute(ctx); err != nil {
		u.fail(ctx, err)
	}
	return u.res
}

func (u *unit) execute(ctx context.Context) error {
	u.transition(domain.StateFetchingChain)

	und, err := fetch(ctx, u, "underlying", func(ctx context.Context) (domain.Underlying, error) {
		return u.provider.GetUnderlying(ctx, u.res.Symbol)
	})
	if err != nil {
		return err
	}
	if u.req.MaxStockPrice != nil && und.LastPrice > *u.req.MaxStockPrice {
		u.logger.Debug("stock price above limit",
			slog.Float64("price", und.LastPrice),
			slog.Float64("max", *u.req.MaxStockPrice),
		)
		u.transition(domain.StateFilteredOut)
		return nil
	}

	exps, err := fetch(ctx, u, "expirations", func(ctx context.Context) ([]time.Time, error) {
		return u.provider.GetExpirations(ctx, u.res.Symbol)
	})
	if err != nil {
		return err
	}

	tol := u.o.cfg.Tolerances.For(u.res.TargetDTE)
	match, ok := analysis.Closest(exps, u.res.TargetDTE, u.asOf, tol)
	if !ok {
		u.logger.Debug("no expiration within tolerance",
			slog.Int("listed", len(exps)),
			slog.Int("tolerance", tol),
		)
		u.transition(domain.StateNoMatch)
		return nil
	}
	exp := match.Expiration
	u.res.Expiration = &exp
	u.transition(domain.StateMatched)

	chain, err := fetch(ctx, u, "chain", func(ctx context.Context) ([]domain.OptionContract, error) {
		return u.provider.GetChain(ctx, u.res.Symbol, match.Expiration)
	})
	if err != nil {
		return err
	}

	u.transition(domain.StatePricing)
	priced := u.price(und, match, chain)

	u.transition(domain.StateFiltering)
	opps := u.filter(und, match, priced)
	if len(opps) == 0 {
		u.transition(domain.StateFilteredOut)
		return nil
	}
	u.transition(domain.StateAccepted)

	for i := range opps {
		opps[i].Score = u.o.scorer.Score(opps[i])
	}
	u.res.Opportunities = opps
	u.transition(domain.StateScored)

	return u.store(ctx)
}

type pricedContract struct {
	contract domain.OptionContract
	delta    float64
	iv       float64
	greeks   greeks.Greeks
}

// price attaches a delta to every usable contract of the requested type.
// Provider deltas are used when they fall within the bounds for the type.
// Gamma, theta and vega the provider left out are filled by the calculator.
func (u *unit) price(und domain.Underlying, match analysis.Match, chain []domain.OptionContract) []pricedContract {
	isPut := u.req.OptionType == domain.OptionPut
	years := greeks.YearsToExpiry(match.DTE)

	out := make([]pricedContract, 0, len(chain))
	for _, c := range chain {
		if c.OptionType != u.req.OptionType {
			continue
		}
		if field, ok := c.QuoteDefect(); !ok {
			u.dataQuality(c, field, fieldValue(c, field))
			continue
		}

		in := greeks.Inputs{
			Spot: und.LastPrice, Strike: c.Strike, YearsToExpiry: years,
			RiskFreeRate: u.o.cfg.RiskFreeRate, ImpliedVol: c.ImpliedVolatility, IsPut: isPut,
		}

		if c.Delta != nil && deltaInBounds(*c.Delta, isPut) {
			out = append(out, pricedContract{
				contract: c,
				delta:    greeks.Round(*c.Delta, 4),
				iv:       c.ImpliedVolatility,
				greeks:   fillGreeks(c, in),
			})
			continue
		}

		d, ok := greeks.Delta(und.LastPrice, c.Strike, years, u.o.cfg.RiskFreeRate, c.ImpliedVolatility, isPut)
		if !ok {
			switch {
			case !(c.ImpliedVolatility > 0):
				u.dataQuality(c, "implied_volatility", c.ImpliedVolatility)
			case !(years > 0):
				u.dataQuality(c, "dte", float64(match.DTE))
			default:
				u.dataQuality(c, "spot", und.LastPrice)
			}
			continue
		}
		out = append(out, pricedContract{contract: c, delta: d, iv: c.ImpliedVolatility, greeks: fillGreeks(c, in)})
	}
	return out
}

// fillGreeks keeps provider gamma, theta and vega and computes whichever are
// missing. Unpriceable inputs leave the missing ones at zero.
func fillGreeks(c domain.OptionContract, in greeks.Inputs) greeks.Greeks {
	var g greeks.Greeks
	if c.Gamma == nil || c.Theta == nil || c.Vega == nil {
		g, _ = greeks.Compute(in)
	}
	if c.Gamma != nil {
		g.Gamma = *c.Gamma
	}
	if c.Theta != nil {
		g.Theta = *c.Theta
	}
	if c.Vega != nil {
		g.Vega = *c.Vega
	}
	return g
}

// filter applies delta, liquidity and premium rules and builds the
// opportunities that survive.
func (u *unit) filter(und domain.Underlying, match analysis.Match, priced []pricedContract) []domain.Opportunity {
	var opps []domain.Opportunity
	for _, p := range priced {
		c := p.contract
		if !u.req.DeltaRange.Contains(p.delta) {
			continue
		}

		liq := u.rules.Check(c.Volume, c.OpenInterest, c.Bid, c.Ask)
		if liq.DataQuality {
			u.dataQuality(c, "ask", c.Ask)
		}
		if !liq.OK {
			u.logger.Debug("contract rejected",
				slog.Float64("strike", c.Strike),
				slog.String("reason", liq.Reason),
			)
			continue
		}

		premium := c.Mid()
		var (
			ret analysis.Returns
			err error
		)
		if u.req.OptionType == domain.OptionCall {
			ret, err = analysis.ComputeCoveredCallReturns(und.LastPrice, premium, match.DTE)
		} else {
			ret, err = analysis.ComputeReturns(c.Strike, premium, match.DTE)
		}
		if err != nil {
			u.dataQuality(c, "premium", premium)
			continue
		}
		if u.req.MinPremiumPct != nil && ret.PremiumPct < *u.req.MinPremiumPct {
			continue
		}
		approx, _ := greeks.SqrtTimeThetaApprox(premium, match.DTE)

		opps = append(opps, domain.Opportunity{
			Symbol:              u.res.Symbol,
			Expiration:          match.Expiration,
			OptionType:          u.req.OptionType,
			DTE:                 match.DTE,
			Strike:              c.Strike,
			StockPrice:          und.LastPrice,
			Premium:             greeks.Round(premium, 4),
			PremiumPct:          ret.PremiumPct,
			MonthlyReturn:       ret.MonthlyReturn,
			AnnualReturn:        ret.AnnualReturn,
			BreakEven:           ret.BreakEven,
			Delta:               p.delta,
			ImpliedVolatility:   p.iv,
			Gamma:               greeks.Round(p.greeks.Gamma, 4),
			Theta:               greeks.Round(p.greeks.Theta, 4),
			Vega:                greeks.Round(p.greeks.Vega, 4),
			ThetaSqrtTimeApprox: approx,
			Volume:              c.Volume,
			OpenInterest:        c.OpenInterest,
			BidAskSpreadPct:     greeks.Round(liq.SpreadPct, 4),
			LiquidityOK:         true,
			ComputedAt:          u.asOf,
		})
	}
	return opps
}

// store writes the unit's opportunities. A write that keeps failing leaves
// the unit SCORED with StoreFailed set so the caller still sees the results.
func (u *unit) store(ctx context.Context) error {
	if u.o.store == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	written, attempts, err := retry(ctx, u.o.cfg.StoreRetry, retryableStore,
		func(err error, wait time.Duration) {
			u.logger.Warn("store write failed, retrying",
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		},
		func(ctx context.Context) (int, error) {
			return u.o.store.UpsertBatch(ctx, u.res.Opportunities)
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		u.o.metrics.StoreWrite("failed")
		u.res.StoreFailed = true
		u.res.Category = domain.CategoryStore
		u.res.Err = err
		u.logger.Error("store write failed",
			slog.Int("attempts", attempts),
			slog.Int("opportunities", len(u.res.Opportunities)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	u.o.metrics.StoreWrite("ok")
	u.logger.Debug("opportunities stored",
		slog.Int("count", len(u.res.Opportunities)),
		slog.Int("written", written),
	)
	u.transition(domain.StateStored)
	return nil
}

// fail moves the unit to SKIPPED for permanent upstream conditions or FAILED
// otherwise. An expired unit deadline is reported as a timeout.
func (u *unit) fail(ctx context.Context, err error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w: unit abandoned in %s: %w", domain.ErrTimeout, u.res.State, err)
	}
	// Results computed before an abandoned write are discarded.
	u.res.Opportunities = nil
	u.res.Err = err
	u.res.Category = domain.Classify(err)

	if u.res.Category == domain.CategoryPermanent {
		u.logger.Info("unit skipped", slog.String("error", err.Error()))
		u.transition(domain.StateSkipped)
		return
	}
	u.logger.Warn("unit failed",
		slog.String("category", string(u.res.Category)),
		slog.Int("attempts", u.res.Attempts),
		slog.String("error", err.Error()),
	)
	u.transition(domain.StateFailed)
}

func (u *unit) dataQuality(c domain.OptionContract, field string, value float64) {
	u.logger.Warn("data quality defect",
		slog.String("symbol", c.Symbol),
		slog.Float64("strike", c.Strike),
		slog.String("expiration", c.Expiration.Format("2006-01-02")),
		slog.String("field", field),
		slog.Float64("value", value),
	)
}

// fetch runs one upstream call under the upstream retry policy.
func fetch[T any](ctx context.Context, u *unit, op string, fn func(context.Context) (T, error)) (T, error) {
	v, attempts, err := retry(ctx, u.o.cfg.Retry, retryableUpstream,
		func(err error, wait time.Duration) {
			u.logger.Warn("upstream call failed, retrying",
				slog.String("op", op),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		},
		fn,
	)
	u.res.Attempts += attempts
	if err != nil {
		return v, fmt.Errorf("pipeline: %s %s: %w", op, u.res.Symbol, err)
	}
	return v, nil
}

func deltaInBounds(d float64, isPut bool) bool {
	if math.IsNaN(d) {
		return false
	}
	if isPut {
		return d >= -1 && d <= 0
	}
	return d >= 0 && d <= 1
}

func fieldValue(c domain.OptionContract, field string) float64 {
	switch field {
	case "bid":
		return c.Bid
	case "ask":
		return c.Ask
	}
	return math.NaN()
}
