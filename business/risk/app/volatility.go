package app

import (
	"math"
	"sync"
	"time"

	"github.com/fd1az/arb-core/business/risk/domain"
)

// VolatilityConfig bounds the tracker's window and the regime cut points,
// expressed as annualization-free per-window return volatility in basis
// points.
type VolatilityConfig struct {
	Window          time.Duration // observations older than this roll off
	MinObservations int           // below this, the regime stays Normal
	CalmBelowBps    float64
	CautionAboveBps float64
	ExtremeAboveBps float64
}

// DefaultVolatilityConfig uses a five-minute window with cut points tuned
// for major spot pairs: realized mid-price volatility under 5 bps is calm,
// over 25 bps warrants caution, over 60 bps is extreme.
func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		Window:          5 * time.Minute,
		MinObservations: 12,
		CalmBelowBps:    5,
		CautionAboveBps: 25,
		ExtremeAboveBps: 60,
	}
}

type midObservation struct {
	at  time.Time
	mid float64
}

// VolatilityTracker derives the prevailing volatility regime from the
// stream of best-price updates: it records each symbol's mid, computes the
// realized standard deviation of log returns over the window, and maps the
// worst symbol's volatility onto the regime scale the controller consumes.
// One tracker serves all symbols; the regime is a market-wide stance, so a
// single symbol in extreme motion is enough to tighten everything.
type VolatilityTracker struct {
	cfg VolatilityConfig

	mu  sync.Mutex
	obs map[string][]midObservation
}

// NewVolatilityTracker builds a tracker with cfg, zero values replaced by
// DefaultVolatilityConfig's.
func NewVolatilityTracker(cfg VolatilityConfig) *VolatilityTracker {
	def := DefaultVolatilityConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = def.MinObservations
	}
	if cfg.CalmBelowBps <= 0 {
		cfg.CalmBelowBps = def.CalmBelowBps
	}
	if cfg.CautionAboveBps <= 0 {
		cfg.CautionAboveBps = def.CautionAboveBps
	}
	if cfg.ExtremeAboveBps <= 0 {
		cfg.ExtremeAboveBps = def.ExtremeAboveBps
	}
	return &VolatilityTracker{cfg: cfg, obs: make(map[string][]midObservation)}
}

// Observe records a mid-price observation for symbol at the given time and
// returns the regime implied by the market's current worst-symbol realized
// volatility.
func (t *VolatilityTracker) Observe(symbol string, mid float64, at time.Time) domain.Regime {
	if mid <= 0 {
		return t.Regime(at)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.obs[symbol] = append(t.trimLocked(symbol, at), midObservation{at: at, mid: mid})
	return t.regimeLocked(at)
}

// Regime returns the regime implied by the observations currently in the
// window, without recording anything.
func (t *VolatilityTracker) Regime(at time.Time) domain.Regime {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.regimeLocked(at)
}

func (t *VolatilityTracker) trimLocked(symbol string, at time.Time) []midObservation {
	obs := t.obs[symbol]
	cutoff := at.Add(-t.cfg.Window)
	i := 0
	for i < len(obs) && obs[i].at.Before(cutoff) {
		i++
	}
	return obs[i:]
}

func (t *VolatilityTracker) regimeLocked(at time.Time) domain.Regime {
	worstBps := 0.0
	cutoff := at.Add(-t.cfg.Window)
	for symbol, obs := range t.obs {
		// Lazily drop symbols that stopped updating.
		for len(obs) > 0 && obs[0].at.Before(cutoff) {
			obs = obs[1:]
		}
		if len(obs) == 0 {
			delete(t.obs, symbol)
			continue
		}
		t.obs[symbol] = obs
		if len(obs) < t.cfg.MinObservations {
			continue
		}
		if bps := realizedVolBps(obs); bps > worstBps {
			worstBps = bps
		}
	}

	switch {
	case worstBps > t.cfg.ExtremeAboveBps:
		return domain.RegimeExtreme
	case worstBps > t.cfg.CautionAboveBps:
		return domain.RegimeCaution
	case worstBps > 0 && worstBps < t.cfg.CalmBelowBps:
		return domain.RegimeCalm
	default:
		return domain.RegimeNormal
	}
}

// realizedVolBps is the standard deviation of consecutive log returns over
// obs, in basis points.
func realizedVolBps(obs []midObservation) float64 {
	if len(obs) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		prev, cur := obs[i-1].mid, obs[i].mid
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * 10000
}
