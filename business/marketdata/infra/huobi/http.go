package huobi

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
	// BaseAPIURL is Huobi/HTX's REST API base URL.
	BaseAPIURL = "https://api.huobi.pro"

	depthEndpoint = "/market/depth"
	httpTimeout   = 10 * time.Second
)

const tracerName = "github.com/fd1az/arb-core/business/marketdata/infra/huobi"

// HTTPClientConfig configures the REST fallback client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{BaseURL: BaseAPIURL, Timeout: httpTimeout}
}

// HTTPClient provides Huobi REST API access, used to seed an initial
// orderbook snapshot before WS depth updates are applied.
type HTTPClient struct {
	client httpclient.Client
	config HTTPClientConfig
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHTTPClient creates a Huobi HTTP client.
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
		httpclient.WithProviderName("huobi"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("huobi: creating http client: %w", err)
	}

	return &HTTPClient{client: client, config: cfg, logger: log, tracer: tracer}, nil
}

// DepthResponse is the REST API response for /market/depth.
type DepthResponse struct {
	Status string          `json:"status"`
	Ch     string          `json:"ch"`
	Tick   depthWireResult `json:"tick"`
}

type depthWireResult struct {
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
	TS   int64        `json:"ts"`
}

func (r *DepthResponse) toOrderbook(symbol string) (domain.Orderbook, error) {
	return domain.Orderbook{
		Venue:     "huobi",
		Symbol:    symbol,
		Bids:      toLevels(r.Tick.Bids),
		Asks:      toLevels(r.Tick.Asks),
		Timestamp: time.Now(),
	}, nil
}

// GetDepth fetches the market depth for symbol via REST.
func (c *HTTPClient) GetDepth(ctx context.Context, symbol string, depth int) (*DepthResponse, error) {
	ctx, span := c.tracer.Start(ctx, "huobi.http.get_depth",
		trace.WithAttributes(attribute.String("symbol", symbol), attribute.Int("depth", depth)))
	defer span.End()

	validDepths := map[int]bool{5: true, 10: true, 20: true}
	if !validDepths[depth] {
		depth = 20
	}

	var result DepthResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "depth"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(huobiErrorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetQueryParam("type", "step0").
		SetQueryParam("depth", strconv.Itoa(depth)).
		SetResult(&result).
		Get(ctx, depthEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.External(apperror.CodeConnectionError, "huobi REST depth fetch", err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("huobi REST depth HTTP %d", resp.StatusCode), nil)
	}
	if result.Status != "ok" {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("huobi API status %q", result.Status), nil)
	}

	c.logger.Debug(ctx, "fetched depth via HTTP", "symbol", symbol)
	return &result, nil
}

func huobiErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var env struct {
			Status  string `json:"status"`
			ErrMsg  string `json:"err-msg"`
			ErrCode string `json:"err-code"`
		}
		if err := json.Unmarshal(body, &env); err == nil && env.ErrMsg != "" {
			return fmt.Errorf("huobi API error %s: %s", env.ErrCode, env.ErrMsg)
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
