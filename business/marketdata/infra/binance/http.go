package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/internal/apperror"
	"github.com/fd1az/arb-core/internal/httpclient"
	"github.com/fd1az/arb-core/internal/logger"
)

const (
	// BaseAPIURL is Binance's REST API base URL.
	BaseAPIURL = "https://api.binance.com"

	depthEndpoint = "/api/v3/depth"
	httpTimeout   = 10 * time.Second
)

const tracerName = "github.com/fd1az/arb-core/business/marketdata/infra/binance"

// HTTPClientConfig configures the REST fallback client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{BaseURL: BaseAPIURL, Timeout: httpTimeout}
}

// HTTPClient provides Binance REST API access, used to seed an initial
// orderbook snapshot before WS depth updates are applied.
type HTTPClient struct {
	client httpclient.Client
	config HTTPClientConfig
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHTTPClient creates a Binance HTTP client.
func NewHTTPClient(cfg HTTPClientConfig, log logger.LoggerInterface) (*HTTPClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("binance: creating http client: %w", err)
	}

	return &HTTPClient{client: client, config: cfg, logger: log, tracer: tracer}, nil
}

// DepthResponse is the REST API response for orderbook depth.
type DepthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// GetDepth fetches the orderbook depth for symbol via REST; InitialSnapshot
// uses it to seed the book before WebSocket depth updates arrive.
func (c *HTTPClient) GetDepth(ctx context.Context, symbol string, limit int) (*DepthResponse, error) {
	ctx, span := c.tracer.Start(ctx, "binance.http.get_depth",
		trace.WithAttributes(attribute.String("symbol", symbol), attribute.Int("limit", limit)))
	defer span.End()

	validLimits := map[int]bool{5: true, 10: true, 20: true, 50: true, 100: true, 500: true, 1000: true, 5000: true}
	if !validLimits[limit] {
		limit = 20
	}

	var result DepthResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "depth"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(binanceErrorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&result).
		Get(ctx, depthEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.External(apperror.CodeConnectionError, "binance REST depth fetch", err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("binance REST depth HTTP %d", resp.StatusCode), nil)
	}

	span.SetAttributes(
		attribute.Int("bids", len(result.Bids)),
		attribute.Int("asks", len(result.Asks)),
		attribute.Int64("last_update_id", result.LastUpdateID),
	)
	c.logger.Debug(ctx, "fetched depth via HTTP", "symbol", symbol, "bids", len(result.Bids), "asks", len(result.Asks))

	return &result, nil
}

// BinanceAPIError represents an error response from Binance's REST API.
type BinanceAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *BinanceAPIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

func binanceErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr BinanceAPIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
