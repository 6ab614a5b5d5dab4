// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	arbApp "github.com/fd1az/arb-core/business/arbitrage/app"
	"github.com/fd1az/arb-core/business/arbitrage/domain"
	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"
	"github.com/fd1az/arb-core/internal/asset"
)

// ConsoleReporter implements arbApp.Reporter for CLI output: it only prints
// opportunities and connection transitions, matching the teacher's console
// reporter's policy of staying quiet on high-frequency events.
type ConsoleReporter struct {
	out    io.Writer
	assets *asset.Registry
}

var _ arbApp.Reporter = (*ConsoleReporter)(nil)

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout, assets: asset.DefaultRegistry()}
}

// legSize renders a leg's size as a proper asset amount when the symbol's
// base asset is in the catalog ("0.5 BTC"), falling back to a bare decimal
// for symbols with unregistered bases.
func (r *ConsoleReporter) legSize(leg domain.Leg) string {
	base, _, ok := strings.Cut(leg.Symbol, "/")
	if ok {
		if baseAsset, known := r.assets.GetBySymbol(base); known {
			if amt, err := asset.ParseDecimal(baseAsset, leg.Size.Round(int32(baseAsset.Decimals()))); err == nil {
				return amt.String()
			}
		}
	}
	return leg.Size.StringFixed(8)
}

// Start prints a startup banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Arbitrage Bot Started")
	fmt.Fprintln(r.out, "======================")
	return nil
}

// Report prints a detected opportunity.
func (r *ConsoleReporter) Report(opp domain.Opportunity) {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "ARBITRAGE OPPORTUNITY DETECTED (%s)\n", opp.Kind)
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "ID:             %s\n", opp.ID)
	fmt.Fprintf(r.out, "Detected:       %s\n", opp.DetectedAt.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Symbol:         %s\n", opp.Symbol)
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(r.out, "LEGS")
	for i, leg := range opp.Legs {
		fmt.Fprintf(r.out, "  %d. %s %s on %s @ %s (size %s, fee %s bps)\n",
			i+1, leg.Side, leg.Symbol, leg.Venue, leg.Price.StringFixed(8), r.legSize(leg), leg.FeeBps.StringFixed(2))
	}
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(r.out, "PROFIT")
	fmt.Fprintf(r.out, "  Trade size:     %s\n", opp.TradeSize.StringFixed(8))
	fmt.Fprintf(r.out, "  Net profit:     $%s\n", opp.NetProfitUSD.StringFixed(2))
	fmt.Fprintf(r.out, "  Profit bps:     %s\n", opp.ProfitBps.StringFixed(2))
	fmt.Fprintf(r.out, "  Expires at:     %s\n", opp.ExpiryEstimate.Format(time.RFC3339))
	fmt.Fprintln(r.out, "================================================================================")
}

// UpdateBestPrices is a no-op for the console reporter: best-price churn is
// far too frequent to print per update.
func (r *ConsoleReporter) UpdateBestPrices(symbol string, best pcdomain.BestPrices) {}

// UpdateConnectionStatus prints a line per connection transition.
func (r *ConsoleReporter) UpdateConnectionStatus(venue string, connected bool, lastTickAge time.Duration) {
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (last tick %s ago)", lastTickAge.Round(time.Millisecond))
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), venue, status)
}

// Stop prints a shutdown banner.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Arbitrage Bot Stopped")
	return nil
}
