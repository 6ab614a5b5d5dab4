package okx

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
	// BaseAPIURL is OKX's V5 REST API base URL.
	BaseAPIURL = "https://www.okx.com"

	booksEndpoint = "/api/v5/market/books"
	httpTimeout   = 10 * time.Second
)

const tracerName = "github.com/fd1az/arb-core/business/marketdata/infra/okx"

// HTTPClientConfig configures the REST fallback client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{BaseURL: BaseAPIURL, Timeout: httpTimeout}
}

// HTTPClient provides OKX V5 REST API access, used to seed an initial
// orderbook snapshot before WS depth updates are applied.
type HTTPClient struct {
	client httpclient.Client
	config HTTPClientConfig
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHTTPClient creates an OKX HTTP client.
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
		httpclient.WithProviderName("okx"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("okx: creating http client: %w", err)
	}

	return &HTTPClient{client: client, config: cfg, logger: log, tracer: tracer}, nil
}

// BooksResponse is the REST API envelope for /api/v5/market/books.
type BooksResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data []booksWireData `json:"data"`
}

func (r *BooksResponse) toOrderbook(instID string) (domain.Orderbook, error) {
	if len(r.Data) == 0 {
		return domain.Orderbook{}, fmt.Errorf("okx: empty books response for %s", instID)
	}
	return r.Data[0].toOrderbook(instID)
}

// GetBooks fetches the order-book depth for instID via REST.
func (c *HTTPClient) GetBooks(ctx context.Context, instID string, depth int) (*BooksResponse, error) {
	ctx, span := c.tracer.Start(ctx, "okx.http.get_books",
		trace.WithAttributes(attribute.String("inst_id", instID), attribute.Int("depth", depth)))
	defer span.End()

	if depth <= 0 || depth > 400 {
		depth = 20
	}

	var result BooksResponse
	resp, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "books"),
			httpclient.NewLabel("inst_id", instID),
		),
		httpclient.WithResponseErrorHandler(okxErrorHandler),
	).
		SetQueryParam("instId", instID).
		SetQueryParam("sz", strconv.Itoa(depth)).
		SetResult(&result).
		Get(ctx, booksEndpoint)

	if err != nil {
		span.RecordError(err)
		return nil, apperror.External(apperror.CodeConnectionError, "okx REST books fetch", err)
	}
	if resp.IsError() {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("okx REST books HTTP %d", resp.StatusCode), nil)
	}
	if result.Code != "0" {
		return nil, apperror.External(apperror.CodeConnectionError, fmt.Sprintf("okx API code %s: %s", result.Code, result.Msg), nil)
	}

	c.logger.Debug(ctx, "fetched books via HTTP", "inst_id", instID)
	return &result, nil
}

func okxErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var env struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(body, &env); err == nil && env.Msg != "" {
			return fmt.Errorf("okx API error %s: %s", env.Code, env.Msg)
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
