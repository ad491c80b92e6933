package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/optionscan/internal/app"
	"github.com/alanyoungcy/optionscan/internal/domain"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	var (
		dtes       []int
		optionType string
		deltaMin   float64
		deltaMax   float64
		minVolume  int64
		minOI      int64
		maxSpread  float64
		maxPrice   float64
		minPremium float64
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "scan SYMBOL...",
		Short: "Scan symbols for short-option income opportunities",
		Example: `  optionscanctl scan AAPL MSFT --dte 30 --dte 45
  optionscanctl scan KO --type call --max-price 80`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.ScanRequest{
				Symbols:            args,
				TargetDTEs:         dtes,
				OptionType:         domain.OptionType(strings.ToLower(optionType)),
				MinVolume:          minVolume,
				MinOpenInterest:    minOI,
				MaxBidAskSpreadPct: maxSpread,
				Limit:              limit,
			}
			if cmd.Flags().Changed("delta-min") || cmd.Flags().Changed("delta-max") {
				req.DeltaRange = domain.DeltaRange{Min: deltaMin, Max: deltaMax}
			}
			if maxPrice > 0 {
				req.MaxStockPrice = &maxPrice
			}
			if minPremium > 0 {
				req.MinPremiumPct = &minPremium
			}

			return withDeps(cmd, g, func(ctx context.Context, deps *app.Dependencies) error {
				res, err := deps.Scans.Scan(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if g.jsonOut {
					return printJSON(out, res)
				}
				printOpportunities(out, res.Opportunities, nil)
				printScanSummary(out, res)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.IntSliceVar(&dtes, "dte", nil, "target days to expiration (repeatable)")
	f.StringVar(&optionType, "type", "", "put or call")
	f.Float64Var(&deltaMin, "delta-min", 0, "minimum delta")
	f.Float64Var(&deltaMax, "delta-max", 0, "maximum delta")
	f.Int64Var(&minVolume, "min-volume", 0, "minimum contract volume")
	f.Int64Var(&minOI, "min-oi", 0, "minimum open interest")
	f.Float64Var(&maxSpread, "max-spread", 0, "maximum bid/ask spread as a fraction of mid")
	f.Float64Var(&maxPrice, "max-price", 0, "skip underlyings priced above this")
	f.Float64Var(&minPremium, "min-premium", 0, "minimum premium percent")
	f.IntVar(&limit, "limit", 0, "maximum opportunities returned")
	return cmd
}

// filterFlags binds the stored-opportunity filter shared by query and export.
func filterFlags(cmd *cobra.Command) func() (domain.OpportunityFilter, error) {
	var (
		symbols      []string
		optionType   string
		minScore     int
		minDTE       int
		maxDTE       int
		includeStale bool
		limit        int
		offset       int
	)
	f := cmd.Flags()
	f.StringSliceVar(&symbols, "symbols", nil, "restrict to symbols (comma-separated)")
	f.StringVar(&optionType, "type", "", "put or call")
	f.IntVar(&minScore, "min-score", 0, "minimum score")
	f.IntVar(&minDTE, "min-dte", 0, "minimum days to expiration")
	f.IntVar(&maxDTE, "max-dte", 0, "maximum days to expiration")
	f.BoolVar(&includeStale, "include-stale", false, "include rows older than the store TTL")
	f.IntVar(&limit, "limit", 100, "maximum rows")
	f.IntVar(&offset, "offset", 0, "rows to skip")

	return func() (domain.OpportunityFilter, error) {
		flt := domain.OpportunityFilter{
			Symbols:      domain.NormalizeSymbols(symbols),
			MinScore:     minScore,
			MinDTE:       minDTE,
			MaxDTE:       maxDTE,
			IncludeStale: includeStale,
			Limit:        limit,
			Offset:       offset,
		}
		if optionType != "" {
			typ, err := domain.ParseOptionType(optionType)
			if err != nil {
				return domain.OpportunityFilter{}, err
			}
			flt.OptionType = typ
		}
		return flt, nil
	}
}

func newQueryCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List stored opportunities without scanning",
		Args:  cobra.NoArgs,
	}
	filter := filterFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		flt, err := filter()
		if err != nil {
			return err
		}
		return withDeps(cmd, g, func(ctx context.Context, deps *app.Dependencies) error {
			stored, err := deps.Scans.QueryStored(ctx, flt)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if g.jsonOut {
				return printJSON(out, stored)
			}
			opps := make([]domain.Opportunity, len(stored))
			stale := make([]bool, len(stored))
			for i, s := range stored {
				opps[i], stale[i] = s.Opportunity, s.Stale
			}
			printOpportunities(out, opps, stale)
			return nil
		})
	}
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		outPath string
		upload  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored opportunities as CSV",
		Args:  cobra.NoArgs,
	}
	filter := filterFlags(cmd)
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload to the export bucket")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		flt, err := filter()
		if err != nil {
			return err
		}
		return withDeps(cmd, g, func(ctx context.Context, deps *app.Dependencies) error {
			if upload {
				path, n, err := deps.Scans.ExportToBlob(ctx, flt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d rows to %s\n", n, path)
				return nil
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := deps.Scans.ExportCSV(ctx, w, flt)
			if err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, outPath)
			}
			return nil
		})
	}
	return cmd
}

func newRefreshCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh WATCHLIST",
		Short: "Refresh a watchlist into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, g, func(ctx context.Context, deps *app.Dependencies) error {
				sum, err := deps.Sync.RefreshWatchlist(ctx, args[0])
				if err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), sum)
				}
				printRefreshSummary(cmd.OutOrStdout(), sum)
				return nil
			})
		},
	}
}

func newWatchlistCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Show or replace watchlists",
	}

	show := &cobra.Command{
		Use:   "show WATCHLIST",
		Short: "Show a watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, g, func(ctx context.Context, deps *app.Dependencies) error {
				wl, err := deps.Sync.GetWatchlist(ctx, args[0])
				if err != nil {
					return err
				}
				return printWatchlist(cmd.OutOrStdout(), wl, g.jsonOut)
			})
		},
	}

	set := &cobra.Command{
		Use:   "set WATCHLIST SYMBOL...",
		Short: "Replace the symbols of a watchlist",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, g, func(ctx context.Context, deps *app.Dependencies) error {
				wl, err := deps.Sync.SetWatchlist(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				return printWatchlist(cmd.OutOrStdout(), wl, g.jsonOut)
			})
		},
	}

	runs := &cobra.Command{
		Use:   "runs",
		Short: "List recent refresh runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withDeps(cmd, g, func(ctx context.Context, deps *app.Dependencies) error {
				rr, err := deps.Sync.ListRuns(ctx, domain.ListOpts{Limit: limit})
				if err != nil {
					return err
				}
				if g.jsonOut {
					return printJSON(cmd.OutOrStdout(), rr)
				}
				printRuns(cmd.OutOrStdout(), rr)
				return nil
			})
		},
	}
	runs.Flags().Int("limit", 20, "maximum runs")

	cmd.AddCommand(show, set, runs)
	return cmd
}
