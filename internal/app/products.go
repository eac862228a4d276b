package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/ecommerce-orders/internal/domain/product"
	"github.com/xenking/ecommerce-orders/internal/handler"
	"github.com/xenking/ecommerce-orders/internal/storage/postgres"
	"github.com/xenking/ecommerce-orders/pkg/health"
)

// RunProductService serves the read-only product catalog until ctx is done.
func RunProductService(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *ProductServiceConfig) error {
	lg.Info("Initializing product service", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	hc := health.New()
	hc.Register(health.Probe{Name: "postgres", Kind: health.Readiness, Check: health.PingCheck(pool), Timeout: 5 * time.Second})
	hc.Register(health.Probe{Name: "goroutines", Kind: health.Liveness, Check: health.GoroutineCountCheck(10000)})
	hc.Start(ctx, healthInterval)
	defer hc.Stop()
	hc.SetReady(true)

	h := newProductRouter(lg, m.TracerProvider(), m.MeterProvider(), hc,
		handler.ProductHandlerConfig{MaxBatch: cfg.MaxBatch},
		postgres.NewProductRepository(pool),
	)
	return serve(ctx, lg, newServer(cfg.Addr, h), hc, cfg.Graceful)
}

func newProductRouter(
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	hc *health.Health,
	cfg handler.ProductHandlerConfig,
	products product.Repository,
) http.Handler {
	r := newRouter(lg, "product-service", tp, mp, hc)
	handler.NewProductHandler(cfg, products).Mount(r)
	return r
}
