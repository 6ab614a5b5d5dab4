package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionQualityMonitor_HighQualityScoresMaxHeartbeat(t *testing.T) {
	m := NewConnectionQualityMonitor(0, time.Minute)
	m.Handle(QualityEvent{Venue: "binance", Kind: QualityEventConnected, At: time.Now()})

	for i := 0; i < 15; i++ {
		m.ReportOutcome("binance", 200*time.Microsecond, true)
	}

	q, ok := m.Get("binance")
	require.True(t, ok)
	assert.Equal(t, float64(100), q.Score) // 50 (latency<=500us) + 50 (0 failures, >10 successes)
	assert.Equal(t, 45*time.Second, q.HeartbeatPeriod)
}

func TestConnectionQualityMonitor_FailuresLowerStabilityComponent(t *testing.T) {
	m := NewConnectionQualityMonitor(0, time.Minute)
	m.Handle(QualityEvent{Venue: "bybit", Kind: QualityEventConnected, At: time.Now()})

	for i := 0; i < 6; i++ {
		m.ReportOutcome("bybit", time.Millisecond, true)
	}
	for i := 0; i < 2; i++ {
		m.ReportOutcome("bybit", time.Millisecond, false)
	}

	q, ok := m.Get("bybit")
	require.True(t, ok)
	// latency<=1ms -> 45; 2 failures (>1, not <=1) but <=3 -> 25.
	assert.Equal(t, float64(70), q.Score)
	assert.Equal(t, 30*time.Second, q.HeartbeatPeriod)
}

func TestConnectionQualityMonitor_ConsecutiveFailureResetAfterThreeSuccesses(t *testing.T) {
	m := NewConnectionQualityMonitor(0, time.Minute)
	m.ReportOutcome("okx", time.Millisecond, false)
	m.ReportOutcome("okx", time.Millisecond, false)

	for i := 0; i < 4; i++ {
		m.ReportOutcome("okx", time.Millisecond, true)
	}

	q, ok := m.Get("okx")
	require.True(t, ok)
	// failures reset to 0 only after >3 consecutive successes, but the
	// stability component still needs >10 successes for the top bucket.
	assert.Equal(t, float64(70), q.Score) // 45 latency (~1ms EWMA) + 25 stability (0 failures, 4 successes)
}

func TestConnectionQualityMonitor_DisconnectedUsesShortestHeartbeat(t *testing.T) {
	m := NewConnectionQualityMonitor(0, time.Minute)
	m.Handle(QualityEvent{Venue: "huobi", Kind: QualityEventDisconnected, At: time.Now()})
	q, ok := m.Get("huobi")
	require.True(t, ok)
	assert.False(t, q.Connected)
	assert.Equal(t, 10*time.Second, q.HeartbeatPeriod)
}

func TestLatencyComponent_Tiers(t *testing.T) {
	assert.Equal(t, float64(50), latencyComponent(400*time.Microsecond))
	assert.Equal(t, float64(45), latencyComponent(800*time.Microsecond))
	assert.Equal(t, float64(35), latencyComponent(1500*time.Microsecond))
	assert.Equal(t, float64(20), latencyComponent(4*time.Millisecond))
	assert.Equal(t, float64(5), latencyComponent(10*time.Millisecond))
}

func TestStabilityComponent_Tiers(t *testing.T) {
	assert.Equal(t, float64(50), stabilityComponent(0, 11))
	assert.Equal(t, float64(40), stabilityComponent(1, 6))
	assert.Equal(t, float64(25), stabilityComponent(3, 1))
	assert.Equal(t, float64(5), stabilityComponent(4, 0))
}
