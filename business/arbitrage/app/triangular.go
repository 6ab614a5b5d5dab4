package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-core/business/arbitrage/domain"
	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"
)

// venuePriceFunc looks up the current per-venue price point for a symbol,
// matching business/pricecache/app.Cache.GetVenuePrice's signature.
type venuePriceFunc func(venue, symbol string) (pcdomain.PricePoint, bool)

// DetectTriangular evaluates one precomputed cycle's effective conversion
// rate against direct conversion. A rate above 1 plus the minimum profit
// threshold (after cubing in the per-leg taker fee, since the cycle crosses
// three books) is an opportunity: the cycle's synthetic path yields more of
// the settlement asset than trading the cycle's closing pair directly.
func DetectTriangular(c Cycle, prices venuePriceFunc, fees domain.FeeSchedule, minProfitBps decimal.Decimal, now time.Time, newID func() string) (domain.Opportunity, bool) {
	p1, ok1 := prices(c.Venue, c.LegOne)
	p2, ok2 := prices(c.Venue, c.LegTwo)
	p3, ok3 := prices(c.Venue, c.LegThree)
	if !ok1 || !ok2 || !ok3 {
		return domain.Opportunity{}, false
	}
	if !p1.MidPrice().IsPositive() || !p2.MidPrice().IsPositive() || !p3.MidPrice().IsPositive() {
		return domain.Opportunity{}, false
	}

	via := p1.MidPrice().Mul(p2.MidPrice())
	direct := p3.MidPrice()
	rate := direct.Div(via)

	fee := fees.TakerRate(c.Venue)
	oneMinusFee := decimal.NewFromInt(1).Sub(fee)
	rateEff := rate.Mul(oneMinusFee).Mul(oneMinusFee).Mul(oneMinusFee)

	threshold := decimal.NewFromInt(1).Add(minProfitBps.Div(bps10k))
	if rateEff.LessThanOrEqual(threshold) {
		return domain.Opportunity{}, false
	}

	profitBps := rateEff.Sub(decimal.NewFromInt(1)).Mul(bps10k)
	feeBps := fees.TakerBps(c.Venue)

	legs := []domain.Leg{
		{Venue: c.Venue, Symbol: c.LegOne, Side: domain.SideBuy, Price: p1.MidPrice(), FeeBps: feeBps},
		{Venue: c.Venue, Symbol: c.LegTwo, Side: domain.SideBuy, Price: p2.MidPrice(), FeeBps: feeBps},
		{Venue: c.Venue, Symbol: c.LegThree, Side: domain.SideSell, Price: p3.MidPrice(), FeeBps: feeBps},
	}
	label := c.Venue + ":" + c.LegOne + "/" + c.LegTwo + "/" + c.LegThree
	opp := domain.New(newID(), domain.KindTriangular, label, legs, decimal.Zero, profitBps, decimal.Zero, now)
	return opp, true
}
