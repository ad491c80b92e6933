// Package notify delivers refresh alerts to chat channels. Every registered
// sender receives each notification whose event type is enabled.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// Event types.
const (
	EventRefreshFailed    = "refresh_failed"
	EventTopOpportunities = "top_opportunities"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches notifications to one or more Senders, filtered by
// event type.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list enables every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether event would be delivered.
func (n *Notifier) Enabled(event string) bool {
	if n == nil || len(n.senders) == 0 {
		return false
	}
	return len(n.events) == 0 || n.events[event]
}

// Notify sends a notification to all senders if event is enabled. A failing
// sender does not stop delivery to the others.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// RefreshFailed formats a refresh that had failed units.
func RefreshFailed(sum domain.RefreshSummary) (title, message string) {
	title = fmt.Sprintf("Refresh %s: %d unit(s) failed", sum.WatchlistID, sum.Failed+sum.StoreFailed)

	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d ok, %d failed, %d skipped, %d not stored\n",
		sum.RunID, sum.Succeeded, sum.Failed, sum.Skipped, sum.StoreFailed)
	for _, cat := range sortedCategories(sum.Failures) {
		fmt.Fprintf(&b, "%s: %d\n", cat, sum.Failures[cat])
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// TopOpportunities formats the best opportunities of a refresh. opps must
// already be ranked.
func TopOpportunities(watchlistID string, opps []domain.Opportunity) (title, message string) {
	title = fmt.Sprintf("Top opportunities in %s", watchlistID)

	var b strings.Builder
	for _, o := range opps {
		fmt.Fprintf(&b, "%s %s %.2f %s (%dd): score %d, %.2f%%/mo, delta %.2f\n",
			o.Symbol, o.Expiration.Format("2006-01-02"), o.Strike, o.OptionType,
			o.DTE, o.Score, o.MonthlyReturn, o.Delta)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

func sortedCategories(m map[domain.FailureCategory]int) []domain.FailureCategory {
	out := make([]domain.FailureCategory, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
