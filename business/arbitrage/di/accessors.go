package di

import (
	arbApp "github.com/fd1az/arb-core/business/arbitrage/app"
	"github.com/fd1az/arb-core/internal/di"
)

// GetDetector resolves the arbitrage Detector from reg.
func GetDetector(reg di.ServiceRegistry) *arbApp.Detector {
	return di.Resolve[*arbApp.Detector](reg, Detector)
}
