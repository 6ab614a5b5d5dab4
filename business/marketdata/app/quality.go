package app

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QualityEventKind enumerates the connection lifecycle transitions the
// quality monitor tracks.
type QualityEventKind int

const (
	QualityEventConnected QualityEventKind = iota
	QualityEventDisconnected
	QualityEventReconnecting
	QualityEventTickReceived
	// QualityEventFailed marks a venue whose reconnect loop exhausted
	// MaxReconnects: unlike Disconnected/Reconnecting, no further automatic
	// reconnect attempt is coming for this connection.
	QualityEventFailed
)

// QualityEvent is emitted by an Adapter on every connection lifecycle
// transition, keeping the ConnectionQualityMonitor's connected state current.
// The Adapter does not emit TickReceived; those come only from RecordTick.
// The latency EWMA is fed separately, by ReportOutcome.
type QualityEvent struct {
	Venue string
	Kind  QualityEventKind
	At    time.Time
	Err   error
}

// VenueQuality is a point-in-time read of a venue's connection health: a
// 0-100 score split between a latency component and a stability component,
// per the same breakdown the monitor scores on.
type VenueQuality struct {
	Venue           string
	Connected       bool
	ReconnectCount  int
	LastTickAge     time.Duration
	LatencyEWMA     time.Duration
	Score           float64 // 0..100
	HeartbeatPeriod time.Duration
}

const defaultLatencyEWMAWeight = 1.0 / 8.0 // new sample weight; prior keeps 7/8

// ConnectionQualityMonitor tracks per-venue connection health as a 0-100
// score: a latency component derived from an EWMA of reported parse/RTT
// latencies (prior weight 7/8, new-sample weight 1/8) plus a stability
// component derived from rolling success/failure counters. Drives each
// venue's adaptive heartbeat interval.
type ConnectionQualityMonitor struct {
	mu    sync.RWMutex
	state map[string]*venueState

	latencyWeight float64 // new-sample weight for the latency EWMA
	staleTimeout  time.Duration

	gauge metric.Float64Gauge
}

type venueState struct {
	connected       bool
	reconnects      int
	lastTick        time.Time
	latencyEWMAUs   float64
	consecFailures  int
	consecSuccesses int
	successCount    int
	failureCount    int
}

// NewConnectionQualityMonitor builds a monitor. latencyWeight is the EWMA
// weight given to each new latency sample (spec default 1/8, prior sample
// keeps the remaining weight); staleTimeout bounds how long without a tick
// before a venue is treated as stale for reporting purposes.
func NewConnectionQualityMonitor(latencyWeight float64, staleTimeout time.Duration) *ConnectionQualityMonitor {
	if latencyWeight <= 0 || latencyWeight > 1 {
		latencyWeight = defaultLatencyEWMAWeight
	}
	m := &ConnectionQualityMonitor{
		state:         make(map[string]*venueState),
		latencyWeight: latencyWeight,
		staleTimeout:  staleTimeout,
	}
	meter := otel.Meter(meterName)
	m.gauge, _ = meter.Float64Gauge("marketdata_venue_quality_score",
		metric.WithDescription("Connection quality score per venue, 0..100"))
	return m
}

func (m *ConnectionQualityMonitor) stateFor(venue string) *venueState {
	st, ok := m.state[venue]
	if !ok {
		st = &venueState{}
		m.state[venue] = st
	}
	return st
}

// Handle processes a lifecycle QualityEvent (connect/disconnect/reconnect or
// a bare tick-received signal with no latency/outcome attached).
func (m *ConnectionQualityMonitor) Handle(ev QualityEvent) {
	m.mu.Lock()
	st := m.stateFor(ev.Venue)
	switch ev.Kind {
	case QualityEventConnected:
		st.connected = true
	case QualityEventDisconnected:
		st.connected = false
	case QualityEventReconnecting:
		st.connected = false
		st.reconnects++
	case QualityEventFailed:
		st.connected = false
	case QualityEventTickReceived:
		st.lastTick = ev.At
	}
	m.mu.Unlock()

	m.recordGauge(ev.Venue)
}

// ReportOutcome records one parse/RTT outcome: on success, latency folds
// into the EWMA (prior weight 7/8, new sample weight latencyWeight) and the
// consecutive-failure counter is cleared only after more than 3 consecutive
// successes, per spec; on failure, the consecutive-failure counter
// increments and the success streak resets immediately.
func (m *ConnectionQualityMonitor) ReportOutcome(venue string, latency time.Duration, success bool) {
	m.mu.Lock()
	st := m.stateFor(venue)
	st.lastTick = time.Now()

	if success {
		us := float64(latency.Microseconds())
		if st.latencyEWMAUs == 0 {
			st.latencyEWMAUs = us
		} else {
			st.latencyEWMAUs = (1-m.latencyWeight)*st.latencyEWMAUs + m.latencyWeight*us
		}
		st.successCount++
		st.consecSuccesses++
		st.consecFailures = 0
		if st.consecSuccesses > 3 {
			st.failureCount = 0
		}
	} else {
		st.failureCount++
		st.consecFailures++
		st.consecSuccesses = 0
	}
	m.mu.Unlock()

	m.recordGauge(venue)
}

// RecordTick is a convenience for calling Handle with a TickReceived event.
func (m *ConnectionQualityMonitor) RecordTick(venue string, at time.Time) {
	m.Handle(QualityEvent{Venue: venue, Kind: QualityEventTickReceived, At: at})
}

func (m *ConnectionQualityMonitor) recordGauge(venue string) {
	if m.gauge == nil {
		return
	}
	q, ok := m.Get(venue)
	if !ok {
		return
	}
	m.gauge.Record(context.Background(), q.Score, metric.WithAttributes(attribute.String("venue", venue)))
}

// Get returns the current quality snapshot for a venue.
func (m *ConnectionQualityMonitor) Get(venue string) (VenueQuality, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.state[venue]
	if !ok {
		return VenueQuality{}, false
	}
	return m.snapshotLocked(venue, st), true
}

// All returns a snapshot of every tracked venue's quality.
func (m *ConnectionQualityMonitor) All() []VenueQuality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]VenueQuality, 0, len(m.state))
	for venue, st := range m.state {
		out = append(out, m.snapshotLocked(venue, st))
	}
	return out
}

func (m *ConnectionQualityMonitor) snapshotLocked(venue string, st *venueState) VenueQuality {
	score := qualityScore(st)
	latency := time.Duration(st.latencyEWMAUs) * time.Microsecond
	return VenueQuality{
		Venue:           venue,
		Connected:       st.connected,
		ReconnectCount:  st.reconnects,
		LastTickAge:     time.Since(st.lastTick),
		LatencyEWMA:     latency,
		Score:           score,
		HeartbeatPeriod: heartbeatInterval(score, latency),
	}
}

// qualityScore is the sum of a latency component and a stability component,
// each bounded exactly as the architecture specifies.
func qualityScore(st *venueState) float64 {
	return latencyComponent(time.Duration(st.latencyEWMAUs)*time.Microsecond) + stabilityComponent(st.failureCount, st.successCount)
}

func latencyComponent(latency time.Duration) float64 {
	switch {
	case latency <= 0:
		return 5
	case latency <= 500*time.Microsecond:
		return 50
	case latency <= time.Millisecond:
		return 45
	case latency <= 2*time.Millisecond:
		return 35
	case latency <= 5*time.Millisecond:
		return 20
	default:
		return 5
	}
}

func stabilityComponent(failures, successes int) float64 {
	switch {
	case failures == 0 && successes > 10:
		return 50
	case failures <= 1 && successes > 5:
		return 40
	case failures <= 3:
		return 25
	default:
		return 5
	}
}

// heartbeatInterval recomputes the adaptive heartbeat period from the
// current score and latency, per the architecture's tiering: 45s when
// score>=80 and latency<1ms, 30s when score>=60, 20s when score>=40,
// 10s otherwise.
func heartbeatInterval(score float64, latency time.Duration) time.Duration {
	switch {
	case score >= 80 && latency < time.Millisecond:
		return 45 * time.Second
	case score >= 60:
		return 30 * time.Second
	case score >= 40:
		return 20 * time.Second
	default:
		return 10 * time.Second
	}
}
