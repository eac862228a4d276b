package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/ecommerce-orders/internal/domain/pricing"
	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

const instrumentationName = "github.com/xenking/ecommerce-orders/internal/domain/order"

// totalTolerance is the largest accepted difference between a client total
// and the catalog total.
var totalTolerance = decimal.New(1, -2)

// Pricer validates product references and prices them.
type Pricer interface {
	PriceAndValidate(ctx context.Context, ids []int64) (*pricing.Quote, error)
}

// Service orchestrates order mutations: validate, price, then persist in a
// single transaction. Pricing always finishes before a transaction is
// opened, so catalog failures never leave partial writes behind.
type Service struct {
	pricer   Pricer
	store    Store
	tracer   trace.Tracer
	outcomes metric.Int64Counter
	observe  Observer
	maxIDs   int
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	observer       Observer
	maxProductIDs  int
}

// WithTracerProvider sets the provider used for orchestration spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *serviceOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for orchestration metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *serviceOptions) { o.meterProvider = mp }
}

// WithObserver registers a callback invoked with each terminal state.
func WithObserver(fn Observer) Option {
	return func(o *serviceOptions) { o.observer = fn }
}

// WithMaxProductIDs caps the number of distinct products one order may
// reference. Non-positive values keep DefaultMaxProductIDs.
func WithMaxProductIDs(n int) Option {
	return func(o *serviceOptions) {
		if n > 0 {
			o.maxProductIDs = n
		}
	}
}

// NewService creates an order Service with the required domain dependencies.
func NewService(pricer Pricer, store Store, opts ...Option) (*Service, error) {
	o := serviceOptions{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		maxProductIDs:  DefaultMaxProductIDs,
	}
	for _, opt := range opts {
		opt(&o)
	}

	outcomes, err := o.meterProvider.Meter(instrumentationName).Int64Counter("orders.orchestrations",
		metric.WithDescription("Order orchestrations by operation and terminal state"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orchestrations counter")
	}

	return &Service{
		pricer:   pricer,
		store:    store,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		outcomes: outcomes,
		observe:  o.observer,
		maxIDs:   o.maxProductIDs,
	}, nil
}

// Create validates the request, prices the referenced products and stores
// the new order with the calculated total.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Order, err error) {
	ctx, r := s.start(ctx, "create", 0)
	defer func() { s.finish(ctx, r, err) }()

	r.enter(StateValidating)
	req, err = req.normalize(s.maxIDs)
	if err != nil {
		return nil, err
	}
	r.productIDs = req.ProductIDs

	r.enter(StatePricing)
	quote, err := s.pricer.PriceAndValidate(ctx, req.ProductIDs)
	if err != nil {
		return nil, pricingError(err)
	}
	if err := requirePositiveTotal(quote.Total); err != nil {
		return nil, err
	}

	o := &Order{
		CustomerName: req.CustomerName,
		Address:      req.Address,
		ProductIDs:   req.ProductIDs,
		TotalAmount:  quote.Total,
		OrderDate:    req.OrderDate,
	}

	r.enter(StatePersisting)
	err = s.inTx(ctx, "insert", 0, func(tx Tx) error {
		return tx.Insert(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	r.orderID = o.ID

	return o, nil
}

// Update replaces the customer name, address and product set of an order.
//
// When the product set is unchanged the client total is trusted as is and
// the catalog is not consulted. When it changed, the set is re-priced and
// the client total must be within 0.01 of the calculated one; the calculated
// total is what gets stored.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (_ *Order, err error) {
	ctx, r := s.start(ctx, "update", id)
	defer func() { s.finish(ctx, r, err) }()

	r.enter(StateValidating)
	req, err = req.normalize(s.maxIDs)
	if err != nil {
		return nil, err
	}
	r.productIDs = req.ProductIDs

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	total := req.TotalAmount
	if !product.SameSet(existing.ProductIDs, req.ProductIDs) {
		r.enter(StatePricing)
		quote, err := s.pricer.PriceAndValidate(ctx, req.ProductIDs)
		if err != nil {
			return nil, pricingError(err)
		}
		if req.TotalAmount.Sub(quote.Total).Abs().GreaterThan(totalTolerance) {
			return nil, &TotalAmountMismatchError{
				Provided:   req.TotalAmount,
				Calculated: quote.Total,
			}
		}
		if err := requirePositiveTotal(quote.Total); err != nil {
			return nil, err
		}
		total = quote.Total
	}

	updated := *existing
	updated.CustomerName = req.CustomerName
	updated.Address = req.Address
	updated.ProductIDs = req.ProductIDs
	updated.TotalAmount = total

	r.enter(StatePersisting)
	err = s.inTx(ctx, "update", id, func(tx Tx) error {
		return tx.Update(ctx, &updated, existing.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Delete removes an order. It has no effect on the catalog.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, r := s.start(ctx, "delete", id)
	defer func() { s.finish(ctx, r, err) }()

	r.enter(StateValidating)
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	r.enter(StatePersisting)
	return s.inTx(ctx, "delete", id, func(tx Tx) error {
		return tx.Delete(ctx, id, existing.UpdatedAt)
	})
}

// Get returns a stored order.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.load(ctx, id)
}

// Details returns an order with fresh catalog snapshots of its products. If
// a referenced product has since left the catalog it returns
// *InvalidProductReferenceError.
func (s *Service) Details(ctx context.Context, id int64) (*Details, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricer.PriceAndValidate(ctx, o.ProductIDs)
	if err != nil {
		return nil, pricingError(err)
	}

	return &Details{Order: o, Products: quote.Products}, nil
}

// List returns a page of orders ordered by id.
func (s *Service) List(ctx context.Context, page Page) ([]Order, error) {
	orders, err := s.store.List(ctx, page)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "load", OrderID: id, Err: err}
	}
	return o, nil
}

// inTx runs fn inside a store transaction. The transaction is rolled back on
// every path that does not end in a successful commit, including panics and
// a cancelled ctx.
func (s *Service) inTx(ctx context.Context, op string, orderID int64, fn func(tx Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "begin", OrderID: orderID, Err: err}
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			zctx.From(ctx).Warn("Rollback failed",
				zap.String("op", op),
				zap.Int64("order_id", orderID),
				zap.Error(rbErr),
			)
		}
	}()

	if err := fn(tx); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return err
		}
		return &PersistenceError{Op: op, OrderID: orderID, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, ErrConflict) {
			return err
		}
		return &PersistenceError{Op: "commit", OrderID: orderID, Err: err}
	}
	committed = true

	return nil
}

// requirePositiveTotal rejects product sets that price to zero, such as a
// set of free products; stored orders always carry a positive total.
func requirePositiveTotal(total decimal.Decimal) error {
	if !total.IsPositive() {
		return &ValidationError{Field: "productIds", Reason: "must add up to a total greater than 0"}
	}
	return nil
}

// pricingError translates pricing failures into order errors. Catalog
// transport and protocol errors pass through wrapped.
func pricingError(err error) error {
	var pnf *pricing.ProductsNotFoundError
	if errors.As(err, &pnf) {
		return &InvalidProductReferenceError{Missing: pnf.Missing}
	}
	return errors.Wrap(err, "price products")
}

// run tracks one orchestration.
type run struct {
	op         string
	orderID    int64
	productIDs []int64
	state      State
	span       trace.Span
}

func (r *run) enter(st State) {
	r.state = st
	r.span.AddEvent(string(st))
}

func (s *Service) start(ctx context.Context, op string, orderID int64) (context.Context, *run) {
	ctx, span := s.tracer.Start(ctx, "order."+op,
		trace.WithAttributes(attribute.Int64("order.id", orderID)),
	)
	ctx = zctx.With(ctx, zap.String("op", op))
	return ctx, &run{op: op, orderID: orderID, state: StateStart, span: span}
}

func (s *Service) finish(ctx context.Context, r *run, err error) {
	final := outcome(r.state, err)

	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", r.op),
		attribute.String("state", string(final)),
	))

	r.span.SetAttributes(
		attribute.Int64("order.id", r.orderID),
		attribute.String("order.state", string(final)),
	)
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())

		fields := []zap.Field{
			zap.Int64("order_id", r.orderID),
			zap.Int64s("product_ids", r.productIDs),
			zap.String("reached", string(r.state)),
			zap.String("state", string(final)),
			zap.Error(err),
		}
		var ipr *InvalidProductReferenceError
		if errors.As(err, &ipr) {
			fields = append(fields, zap.Int64s("missing_product_ids", ipr.Missing))
		}

		lg := zctx.From(ctx)
		if isRejection(err) {
			lg.Info("Order operation rejected", fields...)
		} else {
			lg.Error("Order operation failed", fields...)
		}
	}
	r.span.End()

	if s.observe != nil {
		s.observe(r.op, final)
	}
}
