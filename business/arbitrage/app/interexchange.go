package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arb-core/business/arbitrage/domain"
	pcdomain "github.com/fd1az/arb-core/business/pricecache/domain"
)

// bps10k is 10,000, the basis-point denominator.
var bps10k = decimal.NewFromInt(10000)

// DetectInterExchange checks a symbol's current best bid/ask for a
// cross-venue arbitrage: buy at the venue quoting the lowest ask, sell at
// the venue quoting the highest bid, provided they differ and the spread
// clears fees plus the configured minimum profit.
func DetectInterExchange(symbol string, best pcdomain.BestPrices, fees domain.FeeSchedule, minProfitBps, maxTradeSize decimal.Decimal, now time.Time, newID func() string) (domain.Opportunity, bool) {
	if best.BestBid.Venue == "" || best.BestAsk.Venue == "" {
		return domain.Opportunity{}, false
	}
	if best.BestBid.Venue == best.BestAsk.Venue {
		return domain.Opportunity{}, false
	}

	bid := best.BestBid.Bid()
	ask := best.BestAsk.Ask()
	if bid.LessThanOrEqual(decimal.Zero) || ask.LessThanOrEqual(decimal.Zero) {
		return domain.Opportunity{}, false
	}

	buyFee := fees.TakerRate(best.BestAsk.Venue)
	sellFee := fees.TakerRate(best.BestBid.Venue)

	// bid > ask*(1 + feeBuy + feeSell + minProfitBps*1e-4)
	threshold := decimal.NewFromInt(1).Add(buyFee).Add(sellFee).Add(minProfitBps.Div(bps10k))
	breakeven := ask.Mul(threshold)
	if bid.LessThanOrEqual(breakeven) {
		return domain.Opportunity{}, false
	}

	size := best.BestAsk.Volume()
	if bidVol := best.BestBid.Volume(); bidVol.LessThan(size) {
		size = bidVol
	}
	if maxTradeSize.IsPositive() && maxTradeSize.LessThan(size) {
		size = maxTradeSize
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return domain.Opportunity{}, false
	}

	grossSpread := bid.Sub(ask)
	profitBps := grossSpread.Div(ask).Mul(bps10k).Sub(buyFee.Add(sellFee).Mul(bps10k))

	buyLeg := domain.Leg{Venue: best.BestAsk.Venue, Symbol: symbol, Side: domain.SideBuy, Price: ask, Size: size, FeeBps: fees.TakerBps(best.BestAsk.Venue)}
	sellLeg := domain.Leg{Venue: best.BestBid.Venue, Symbol: symbol, Side: domain.SideSell, Price: bid, Size: size, FeeBps: fees.TakerBps(best.BestBid.Venue)}

	netUSD := sellLeg.Notional().Mul(decimal.NewFromInt(1).Sub(sellFee)).Sub(buyLeg.Notional().Mul(decimal.NewFromInt(1).Add(buyFee)))

	opp := domain.New(newID(), domain.KindInterExchange, symbol, []domain.Leg{buyLeg, sellLeg}, size, profitBps, netUSD, now)
	return opp, true
}
