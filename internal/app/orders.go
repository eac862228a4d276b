package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/ecommerce-orders/internal/domain/order"
	"github.com/xenking/ecommerce-orders/internal/domain/pricing"
	"github.com/xenking/ecommerce-orders/internal/handler"
	"github.com/xenking/ecommerce-orders/internal/productclient"
	"github.com/xenking/ecommerce-orders/internal/storage/postgres"
	"github.com/xenking/ecommerce-orders/pkg/health"
	"github.com/xenking/ecommerce-orders/pkg/httpmiddleware"
)

// RunOrderService creates all order service dependencies, serves HTTP and
// handles graceful shutdown.
func RunOrderService(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *OrderServiceConfig) error {
	lg.Info("Initializing order service",
		zap.String("addr", cfg.Addr),
		zap.String("product_service", cfg.ProductServiceURL),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	catalog, err := productclient.New(cfg.ProductServiceURL,
		productclient.WithTimeout(cfg.CatalogTimeout),
		productclient.WithTracerProvider(m.TracerProvider()),
		productclient.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create product client")
	}

	orders, err := order.NewService(pricing.NewEngine(catalog), postgres.NewOrderStore(pool),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
		order.WithMaxProductIDs(cfg.MaxProductIDs),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	hc := health.New()
	hc.Register(health.Probe{Name: "postgres", Kind: health.Readiness, Check: health.PingCheck(pool), Timeout: 5 * time.Second})
	hc.Register(health.Probe{Name: "catalog", Kind: health.Readiness, Check: catalog.Ready, Timeout: cfg.CatalogTimeout})
	hc.Register(health.Probe{Name: "goroutines", Kind: health.Liveness, Check: health.GoroutineCountCheck(10000)})
	hc.Start(ctx, healthInterval)
	defer hc.Stop()
	hc.SetReady(true)

	h := newOrderRouter(lg, m.TracerProvider(), m.MeterProvider(), hc, cfg.CORS, orders)
	return serve(ctx, lg, newServer(cfg.Addr, h), hc, cfg.Graceful)
}

func newOrderRouter(
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	hc *health.Health,
	cfg CORSConfig,
	orders handler.OrderService,
) http.Handler {
	r := newRouter(lg, "order-service", tp, mp, hc, corsMiddleware(cfg))
	handler.NewOrderHandler(orders).Mount(r)
	return r
}

func corsMiddleware(cfg CORSConfig) httpmiddleware.Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httpmiddleware.RequestIDHeader},
		ExposedHeaders:   []string{"Location", httpmiddleware.RequestIDHeader},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           86400,
	})
}
