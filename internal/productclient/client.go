// Package productclient implements catalog.Reader against the product
// service HTTP API.
package productclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/ecommerce-orders/internal/domain/catalog"
	"github.com/xenking/ecommerce-orders/internal/domain/product"
	"github.com/xenking/ecommerce-orders/internal/wire"
)

const (
	instrumentationName = "github.com/xenking/ecommerce-orders/internal/productclient"
	maxBodySize         = 4 << 20
)

var _ catalog.Reader = (*Client)(nil)

// Client reads product snapshots from the product service. It shares one
// pooled HTTP transport across all callers and never retries on its own.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// Option configures a Client.
type Option func(*options)

type options struct {
	transport      http.RoundTripper
	timeout        time.Duration
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTransport sets the base round tripper. It is wrapped with otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTimeout bounds each outbound request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTracerProvider sets the provider for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider for client metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New creates a Client for the product service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("product service URL is required")
	}
	o := options{
		transport:      http.DefaultTransport,
		timeout:        5 * time.Second,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	duration, err := o.meterProvider.Meter(instrumentationName).Float64Histogram("catalog.fetch.duration",
		metric.WithDescription("Duration of product service lookups"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create fetch duration histogram")
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(o.transport,
				otelhttp.WithTracerProvider(o.tracerProvider),
				otelhttp.WithMeterProvider(o.meterProvider),
			),
		},
		timeout:  o.timeout,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		duration: duration,
	}, nil
}

// FetchOne returns a single product or product.ErrNotFound.
func (c *Client) FetchOne(ctx context.Context, id int64) (_ *product.Snapshot, err error) {
	ctx, done := c.observe(ctx, "one")
	defer func() { done(err) }()

	var p product.Snapshot
	err = c.get(ctx, fmt.Sprintf("%s/products/%d", c.baseURL, id), func(d *jx.Decoder) error {
		var err error
		p, err = wire.DecodeProduct(d)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p.ID != id {
		return nil, &catalog.ProtocolError{Reason: fmt.Sprintf("asked for product %d, got %d", id, p.ID)}
	}
	return &p, nil
}

// FetchMany returns the found subset of ids in at most one request. A single
// id goes through the single-product endpoint.
func (c *Client) FetchMany(ctx context.Context, ids []int64) (map[int64]product.Snapshot, error) {
	ids = product.Dedup(ids)
	switch len(ids) {
	case 0:
		return map[int64]product.Snapshot{}, nil
	case 1:
		p, err := c.FetchOne(ctx, ids[0])
		if errors.Is(err, product.ErrNotFound) {
			return map[int64]product.Snapshot{}, nil
		}
		if err != nil {
			return nil, err
		}
		return map[int64]product.Snapshot{p.ID: *p}, nil
	}
	return c.fetchBatch(ctx, ids)
}

func (c *Client) fetchBatch(ctx context.Context, ids []int64) (_ map[int64]product.Snapshot, err error) {
	ctx, done := c.observe(ctx, "many")
	defer func() { done(err) }()

	parts := make([]string, len(ids))
	requested := make(map[int64]struct{}, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
		requested[id] = struct{}{}
	}

	var products []product.Snapshot
	err = c.get(ctx, c.baseURL+"/products/batch?ids="+strings.Join(parts, ","), func(d *jx.Decoder) error {
		var err error
		products, err = wire.DecodeProducts(d)
		return err
	})
	if err != nil {
		return nil, err
	}

	found := make(map[int64]product.Snapshot, len(products))
	for _, p := range products {
		if _, ok := requested[p.ID]; !ok {
			return nil, &catalog.ProtocolError{Reason: fmt.Sprintf("unrequested product %d in batch response", p.ID)}
		}
		found[p.ID] = p
	}
	return found, nil
}

// Ready reports whether the product service answers its readiness probe.
func (c *Client) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &catalog.UnavailableError{Err: err}
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &catalog.UnavailableError{Err: errors.Errorf("readiness status %d", resp.StatusCode)}
	}
	return nil
}

// get performs a GET and hands a 200 body to decode. Other statuses are
// classified into catalog errors; a 404 carrying the catalog's error body
// becomes product.ErrNotFound.
func (c *Client) get(ctx context.Context, url string, decode func(d *jx.Decoder) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &catalog.UnavailableError{Err: err}
	}
	defer drain(resp.Body)

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
	case code == http.StatusNotFound:
		// A 404 from a wrong base URL or route is not an absent product.
		if !isErrorBody(resp.Body) {
			return &catalog.ProtocolError{Reason: "status 404 without a catalog error body"}
		}
		return product.ErrNotFound
	case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return &catalog.UnavailableError{Err: errors.Errorf("status %d", code)}
	default:
		return &catalog.ProtocolError{Reason: fmt.Sprintf("unexpected status %d", code)}
	}

	d := jx.Decode(io.LimitReader(resp.Body, maxBodySize), 4096)
	if err := decode(d); err != nil {
		if ctx.Err() != nil {
			return &catalog.UnavailableError{Err: err}
		}
		return &catalog.ProtocolError{Reason: "decode body", Err: err}
	}
	return nil
}

// isErrorBody reports whether body is the product service's JSON error
// object, {"error": "..."}.
func isErrorBody(body io.Reader) bool {
	var found bool
	err := jx.Decode(io.LimitReader(body, maxBodySize), 512).Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		if _, err := d.Str(); err != nil {
			return err
		}
		found = true
		return nil
	})
	return err == nil && found
}

// observe starts a span for one lookup and returns a func that records its
// duration and outcome.
func (c *Client) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "catalog.fetch_"+op, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, func(err error) {
		result := outcome(err)
		span.SetAttributes(attribute.String("catalog.outcome", result))
		if err != nil && result != "not_found" {
			span.RecordError(err)
		}
		span.End()
		c.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", result),
		))
	}
}

func outcome(err error) string {
	var pe *catalog.ProtocolError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, product.ErrNotFound):
		return "not_found"
	case errors.Is(err, catalog.ErrUnavailable):
		return "unavailable"
	case errors.As(err, &pe):
		return "protocol"
	default:
		return "error"
	}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodySize))
	_ = body.Close()
}
