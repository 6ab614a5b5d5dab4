package app

import (
	"context"
	"time"

	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"

	"github.com/fd1az/arb-core/business/arbitrage/domain"
)

// Reporter is the seam to whatever surface displays live pipeline activity
// (console output or the TUI). It is best-effort: a slow or absent reporter
// must never block detection.
type Reporter interface {
	Start(ctx context.Context) error
	Report(opp domain.Opportunity)
	UpdateBestPrices(symbol string, best pcdomain.BestPrices)
	UpdateConnectionStatus(venue string, connected bool, lastTickAge time.Duration)
	Stop() error
}

// reportingSink wraps a Sink so every submitted opportunity is also handed
// to a Reporter before being forwarded on, letting the detector stay
// unaware that anything observes its output besides the dispatcher.
type reportingSink struct {
	next     Sink
	reporter Reporter
}

// NewReportingSink wraps next so every Submit also calls reporter.Report.
// If reporter is nil, next is returned unwrapped.
func NewReportingSink(next Sink, reporter Reporter) Sink {
	if reporter == nil {
		return next
	}
	return reportingSink{next: next, reporter: reporter}
}

func (s reportingSink) Submit(ctx context.Context, opp domain.Opportunity) error {
	s.reporter.Report(opp)
	return s.next.Submit(ctx, opp)
}
