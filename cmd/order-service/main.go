package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/ecommerce-orders/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadOrderServiceConfig()
		if err != nil {
			return err
		}
		return appkg.RunOrderService(ctx, lg, m, cfg)
	})
}
