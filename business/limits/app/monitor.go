package app

import (
	"context"
	"time"

	"github.com/fd1az/arb-core/business/limits/domain"
)

// RunComplianceLoop periodically logs the validator's status and escalates
// on critical violations, until ctx is cancelled. Mirrors the reference
// validator's periodic monitoring task.
func (v *Validator) RunComplianceLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := v.Status()
			v.log.Debug(ctx, "limits status",
				"exchanges", status.CurrentExchangeCount,
				"max_exchanges", v.limits.MaxSupportedExchanges,
				"symbols", status.CurrentSymbolCount,
				"max_symbols", v.limits.MaxSupportedSymbols,
				"violations", status.ViolationCount,
			)

			critical := 0
			for _, violation := range v.ViolationHistory(0) {
				if violation.Severity == domain.SeverityCritical {
					critical++
				}
			}
			if critical > 0 {
				v.log.Error(ctx, "system has critical limit violations", "count", critical)
			}
		}
	}
}
