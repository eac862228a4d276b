// Package app wires the order and product services: storage, domain services,
// HTTP routing, health probes and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/ecommerce-orders/pkg/health"
	"github.com/xenking/ecommerce-orders/pkg/httpmiddleware"
)

const healthInterval = 10 * time.Second

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              addr,
		Handler:           h,
	}
}

// newRouter returns a chi router with the common middleware chain and the
// health endpoints mounted. Extra middleware runs after logger injection and
// panic recovery.
func newRouter(
	lg *zap.Logger,
	service string,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	hc *health.Health,
	extra ...httpmiddleware.Middleware,
) chi.Router {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
	)
	r.Use(extra...)
	r.Use(
		httpmiddleware.Instrument(service, tp, mp),
		httpmiddleware.RequestID(),
		httpmiddleware.LogRequests(),
	)
	r.Get("/livez", hc.LiveEndpoint)
	r.Get("/readyz", hc.ReadyEndpoint)
	return r
}

// serve runs srv until ctx is done, then flips readiness off, waits for load
// balancers to notice and drains in-flight requests.
func serve(ctx context.Context, lg *zap.Logger, srv *http.Server, hc *health.Health, cfg GracefulConfig) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		hc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.ReadinessDelay))
			time.Sleep(cfg.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), cfg.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	return g.Wait()
}
