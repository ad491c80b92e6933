package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOpportunities renders ranked opportunities. stale is optional and
// adds a column when set.
func printOpportunities(w io.Writer, opps []domain.Opportunity, stale []bool) {
	if len(opps) == 0 {
		fmt.Fprintln(w, "no opportunities")
		return
	}

	header := []string{"Symbol", "Type", "Expiration", "DTE", "Strike", "Spot", "Premium", "Prem %", "Monthly %", "Annual %", "Delta", "IV", "Vol", "OI", "Score"}
	if stale != nil {
		header = append(header, "Stale")
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for i, o := range opps {
		row := []string{
			o.Symbol,
			string(o.OptionType),
			o.Expiration.Format("2006-01-02"),
			strconv.Itoa(o.DTE),
			money(o.Strike),
			money(o.StockPrice),
			money(o.Premium),
			pct(o.PremiumPct),
			pct(o.MonthlyReturn),
			pct(o.AnnualReturn),
			fmt.Sprintf("%.3f", o.Delta),
			fmt.Sprintf("%.1f%%", o.ImpliedVolatility*100),
			strconv.FormatInt(o.Volume, 10),
			strconv.FormatInt(o.OpenInterest, 10),
			strconv.Itoa(o.Score),
		}
		if stale != nil {
			row = append(row, yesNo(stale[i]))
		}
		table.Append(row)
	}
	table.Render()
}

func printScanSummary(w io.Writer, res domain.ScanResult) {
	fmt.Fprintf(w, "\nrun %s: %d succeeded, %d failed, %d skipped, %d store failures, %d stored in %dms\n",
		res.RunID, res.Succeeded, res.Failed, res.Skipped, res.StoreFailed, res.Stored, res.DurationMs)
	if len(res.Failures) > 0 {
		fmt.Fprintf(w, "failures: %s\n", failureList(res.Failures))
	}
}

func printRefreshSummary(w io.Writer, sum domain.RefreshSummary) {
	if sum.InProgress {
		fmt.Fprintf(w, "refresh of %s already in progress\n", sum.WatchlistID)
		return
	}
	fmt.Fprintf(w, "refresh %s of %s: %d succeeded, %d failed, %d skipped, %d store failures, %d stored in %dms\n",
		sum.RunID, sum.WatchlistID, sum.Succeeded, sum.Failed, sum.Skipped, sum.StoreFailed, sum.Stored, sum.DurationMs)
	if len(sum.Failures) > 0 {
		fmt.Fprintf(w, "failures: %s\n", failureList(sum.Failures))
	}
}

func printWatchlist(w io.Writer, wl domain.Watchlist, jsonOut bool) error {
	if jsonOut {
		return printJSON(w, wl)
	}
	fmt.Fprintf(w, "%s (%d symbols, updated %s)\n", wl.ID, len(wl.Symbols), wl.UpdatedAt.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Fprintln(w, strings.Join(wl.Symbols, " "))
	return nil
}

func printRuns(w io.Writer, runs []domain.RefreshRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no refresh runs")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Started", "Watchlist", "OK", "Failed", "Skipped", "Store Failed", "Stored", "ms"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for _, r := range runs {
		s := r.Summary
		table.Append([]string{
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.WatchlistID,
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.StoreFailed),
			strconv.Itoa(s.Stored),
			strconv.FormatInt(s.DurationMs, 10),
		})
	}
	table.Render()
}

func failureList(m map[domain.FailureCategory]int) string {
	cats := make([]string, 0, len(m))
	for c := range m {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = fmt.Sprintf("%s=%d", c, m[domain.FailureCategory(c)])
	}
	return strings.Join(parts, " ")
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }
func pct(v float64) string   { return fmt.Sprintf("%.2f", v) }

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
