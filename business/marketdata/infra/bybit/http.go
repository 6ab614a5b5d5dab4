package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/business/marketdata/domain"
	"github.com/fd1az/arb-core/internal/apperror"
	"github.com/fd1az/arb-core/internal/httpclient"
	"github.com/fd1az/arb-core/internal/logger"
)

const (
	// BaseAPIURL is Bybit's V5 REST API base URL.
	BaseAPIURL = "https://api.bybit.com"

	orderbookEndpoint = "/v5/market/orderbook"
	httpTimeout       = 10 * time.Second
)

const tracerName = "github.com/fd1az/arb-core/business/marketdata/infra/bybit"

// HTTPClientConfig configures the REST fallback client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{BaseURL: BaseAPIURL, Timeout: httpTimeout}
}

// HTTPClient provides Bybit V5 REST API access, used to seed an initial
// orderbook snapshot before WS depth updates are applied.
type HTTPClient struct {
	client httpclient.Client
	config HTTPClientConfig
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHTTPClient creates a Bybit HTTP client.
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
		httpclient.WithProviderName("bybit"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("bybit: creating http client: %w", err)
	}

	return &HTTPClient{client: client, config: cfg, logger: log, tracer: tracer}, nil
}

// OrderbookResponse is the REST API envelope for V5 market orderbook.
type OrderbookResponse struct {
	RetCode int                  `json:"retCode"`
	RetMsg  string               `json:"retMsg"`
	Result  orderbookRESTResult  `json:"result"`
}

type orderbookRESTResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	Ts     int64      `json:"ts"`
	UID    int64      `json:"u"`
}

func (r *OrderbookResponse) toOrderbook(symbol string) (domain.Orderbook, error) {
	return domain.Orderbook{
		Venue:     "bybit",
		Symbol:    symbol,
		Bids:      domain.ParseLevels(r.Result.Bids),
		Asks:      domain.ParseLevels(r.Result.Asks),
		Timestamp: time.Now(),
		SeqNum:    uint64(r.Result.UID),
	}, nil
}

// GetOrderbook fetches the spot orderbook depth for symbol via REST.
func (c *HTTPClient) GetOrderbook(ctx context.Context, symbol string, limit int) (*OrderbookResponse, error) {
	ctx, span := c.tracer.Start(ctx, "bybit.http.get_orderbook",
		trace.WithAttributes(attribute.String("symbol", symbol), attribute.Int("limit", limit)))
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 200
	}

	var result OrderbookResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "orderbook"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(bybitErrorHandler),
	).
		SetQueryParam("category", "spot").
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&result).
		Get(ctx, orderbookEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.External(apperror.CodeConnectionError, "bybit REST orderbook fetch", err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("bybit REST orderbook HTTP %d", resp.StatusCode), nil)
	}
	if result.RetCode != 0 {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("bybit API retCode %d: %s", result.RetCode, result.RetMsg), nil)
	}

	span.SetAttributes(
		attribute.Int("bids", len(result.Result.Bids)),
		attribute.Int("asks", len(result.Result.Asks)),
	)
	c.logger.Debug(ctx, "fetched orderbook via HTTP", "symbol", symbol, "bids", len(result.Result.Bids), "asks", len(result.Result.Asks))

	return &result, nil
}

func bybitErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var env struct {
			RetCode int    `json:"retCode"`
			RetMsg  string `json:"retMsg"`
		}
		if err := json.Unmarshal(body, &env); err == nil && env.RetMsg != "" {
			return fmt.Errorf("bybit API error %d: %s", env.RetCode, env.RetMsg)
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
