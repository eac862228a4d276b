package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/ecommerce-orders/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadProductServiceConfig()
		if err != nil {
			return err
		}
		return appkg.RunProductService(ctx, lg, m, cfg)
	})
}
