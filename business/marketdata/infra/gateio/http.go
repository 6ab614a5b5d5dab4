package gateio

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
	// BaseAPIURL is Gate.io's V4 REST API base URL.
	BaseAPIURL = "https://api.gateio.ws"

	orderBookEndpoint = "/api/v4/spot/order_book"
	httpTimeout       = 10 * time.Second
)

const tracerName = "github.com/fd1az/arb-core/business/marketdata/infra/gateio"

// HTTPClientConfig configures the REST fallback client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{BaseURL: BaseAPIURL, Timeout: httpTimeout}
}

// HTTPClient provides Gate.io V4 REST API access, used to seed an initial
// orderbook snapshot before WS depth updates are applied.
type HTTPClient struct {
	client httpclient.Client
	config HTTPClientConfig
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHTTPClient creates a Gate.io HTTP client.
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
		httpclient.WithProviderName("gateio"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("gateio: creating http client: %w", err)
	}

	return &HTTPClient{client: client, config: cfg, logger: log, tracer: tracer}, nil
}

// OrderBookResponse is the REST API response for /api/v4/spot/order_book.
type OrderBookResponse struct {
	ID      int64      `json:"id"`
	Current int64      `json:"current"`
	Update  int64      `json:"update"`
	Asks    [][]string `json:"asks"`
	Bids    [][]string `json:"bids"`
}

func (r *OrderBookResponse) toOrderbook(symbol string) (domain.Orderbook, error) {
	return domain.Orderbook{
		Venue:     "gateio",
		Symbol:    symbol,
		Bids:      domain.ParseLevels(r.Bids),
		Asks:      domain.ParseLevels(r.Asks),
		Timestamp: time.Now(),
		SeqNum:    uint64(r.ID),
	}, nil
}

// GetOrderBook fetches the order book for currencyPair via REST.
func (c *HTTPClient) GetOrderBook(ctx context.Context, currencyPair string, limit int) (*OrderBookResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gateio.http.get_order_book",
		trace.WithAttributes(attribute.String("currency_pair", currencyPair), attribute.Int("limit", limit)))
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var result OrderBookResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "order_book"),
			httpclient.NewLabel("currency_pair", currencyPair),
		),
		httpclient.WithResponseErrorHandler(gateioErrorHandler),
	).
		SetQueryParam("currency_pair", currencyPair).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&result).
		Get(ctx, orderBookEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.External(apperror.CodeConnectionError, "gateio REST order_book fetch", err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("gateio REST order_book HTTP %d", resp.StatusCode), nil)
	}

	c.logger.Debug(ctx, "fetched order book via HTTP", "currency_pair", currencyPair, "bids", len(result.Bids), "asks", len(result.Asks))
	return &result, nil
}

func gateioErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var env struct {
			Label   string `json:"label"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
			return fmt.Errorf("gateio API error %s: %s", env.Label, env.Message)
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
