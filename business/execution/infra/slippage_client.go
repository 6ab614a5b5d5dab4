// Package infra holds the execution context's outbound adapters: the
// slippage predictor HTTP client.
package infra

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/internal/apperror"
	"github.com/fd1az/arb-core/internal/httpclient"
)

const tracerName = "github.com/fd1az/arb-core/business/execution/infra"

const (
	predictEndpoint    = "/api/v1/slippage/predict"
	compensateEndpoint = "/api/v1/slippage/compensate"
	recordEndpoint     = "/api/v1/slippage/record"
)

// PredictRequest asks the predictor for expected slippage on a prospective
// fill.
type PredictRequest struct {
	Venue        string  `json:"venue"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	SizeUSD      float64 `json:"size_usd"`
	MarketSpread float64 `json:"market_spread_bps"`
}

// PredictResponse is the predictor's slippage estimate.
type PredictResponse struct {
	ExpectedSlippageBps float64 `json:"expected_slippage_bps"`
	Confidence          float64 `json:"confidence"`
	MarketCondition     string  `json:"market_condition"`
	RecommendedMaxSize  float64 `json:"recommended_max_size"`
	Timestamp           int64   `json:"timestamp"`
	ValiditySeconds     int     `json:"validity_seconds"`
}

// CompensateRequest asks for a concrete compensation plan for a predicted
// fill.
type CompensateRequest struct {
	Venue   string  `json:"venue"`
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	SizeUSD float64 `json:"size_usd"`
}

// OrderSplitting describes a chunked execution plan.
type OrderSplitting struct {
	NumChunks  int       `json:"num_chunks"`
	IntervalMs int       `json:"interval_ms"`
	ChunkSizes []float64 `json:"chunk_sizes"`
}

// CompensateResponse is the predictor's recommended compensation.
type CompensateResponse struct {
	PriceAdjustmentBps     float64         `json:"price_adjustment_bps"`
	OrderSplitting         *OrderSplitting `json:"order_splitting,omitempty"`
	ExpectedImprovementBps float64         `json:"expected_improvement_bps"`
	Confidence             float64         `json:"confidence"`
}

// RecordRequest feeds back actual outcomes for the predictor's learning
// loop.
type RecordRequest struct {
	Venue                string  `json:"venue"`
	Symbol               string  `json:"symbol"`
	PredictedSlippageBps float64 `json:"predicted_slippage_bps"`
	ActualSlippageBps    float64 `json:"actual_slippage_bps"`
}

// SlippageClient talks to the external slippage prediction service.
type SlippageClient struct {
	client httpclient.Client
	tracer trace.Tracer
}

// Config configures the slippage predictor client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewSlippageClient builds a SlippageClient.
func NewSlippageClient(cfg Config) (*SlippageClient, error) {
	tracer := otel.Tracer(tracerName)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 500 * time.Millisecond
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("slippage_predictor"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json", "Content-Type": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("slippage client: %w", err)
	}

	return &SlippageClient{client: client, tracer: tracer}, nil
}

// Predict requests an expected-slippage estimate.
func (s *SlippageClient) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	var result PredictResponse
	resp, err := s.client.NewRequest().SetBody(req).SetResult(&result).Post(ctx, predictEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodePredictionUnavailable, "slippage predict", err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodePredictionUnavailable, fmt.Sprintf("slippage predict HTTP %d", resp.StatusCode), nil)
	}
	return &result, nil
}

// Compensate requests a compensation plan.
func (s *SlippageClient) Compensate(ctx context.Context, req CompensateRequest) (*CompensateResponse, error) {
	var result CompensateResponse
	resp, err := s.client.NewRequest().SetBody(req).SetResult(&result).Post(ctx, compensateEndpoint)
	if err != nil {
		return nil, apperror.External(apperror.CodePredictionUnavailable, "slippage compensate", err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodePredictionUnavailable, fmt.Sprintf("slippage compensate HTTP %d", resp.StatusCode), nil)
	}
	return &result, nil
}

// Record feeds back the actual outcome, best-effort — a failure here never
// fails the caller's execution.
func (s *SlippageClient) Record(ctx context.Context, req RecordRequest) error {
	resp, err := s.client.NewRequest().SetBody(req).Post(ctx, recordEndpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("slippage record HTTP %d", resp.StatusCode)
	}
	return nil
}
