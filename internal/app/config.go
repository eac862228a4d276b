package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const (
	defaultOrderAddr   = "0.0.0.0:8080"
	defaultProductAddr = "0.0.0.0:8081"
)

// OrderServiceConfig configures the order service, loadable from environment
// variables (ORDERS_ prefix), flags, or YAML config files.
type OrderServiceConfig struct {
	Addr              string        `default:"0.0.0.0:8080" usage:"Order service listen address"`
	DatabaseURL       string        `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ProductServiceURL string        `default:"http://localhost:8081" usage:"Base URL of the product service" flag:"product-service-url"`
	CatalogTimeout    time.Duration `default:"5s" usage:"Timeout of one product service request" flag:"catalog-timeout"`
	MaxProductIDs     int           `default:"100" usage:"Maximum distinct products per order, at most the product service max batch" flag:"max-product-ids"`
	CORS              CORSConfig
	Graceful          GracefulConfig
}

// ProductServiceConfig configures the product service, loadable from
// environment variables (PRODUCTS_ prefix), flags, or YAML config files.
type ProductServiceConfig struct {
	Addr        string `default:"0.0.0.0:8081" usage:"Product service listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PRODUCTS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MaxBatch    int    `default:"100" usage:"Maximum number of ids in one batch lookup" flag:"max-batch"`
	Graceful    GracefulConfig
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadOrderServiceConfig loads the order service configuration from the
// environment, command-line flags and optional YAML files.
func LoadOrderServiceConfig() (*OrderServiceConfig, error) {
	return loadOrderServiceConfig(os.Args[1:], []string{"config.yaml", "/etc/orders/config.yaml"})
}

func loadOrderServiceConfig(args, files []string) (*OrderServiceConfig, error) {
	var cfg OrderServiceConfig
	if err := load(&cfg, "ORDERS", args, files); err != nil {
		return nil, err
	}
	cfg.DatabaseURL, cfg.Addr = applyPlatformDefaults(cfg.DatabaseURL, cfg.Addr, defaultOrderAddr)

	switch {
	case cfg.DatabaseURL == "":
		return nil, errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	case cfg.ProductServiceURL == "":
		return nil, errors.New("product service URL is required: set ORDERS_PRODUCT_SERVICE_URL")
	case cfg.CatalogTimeout <= 0:
		return nil, errors.Errorf("catalog timeout must be positive, got %s", cfg.CatalogTimeout)
	case cfg.MaxProductIDs <= 0:
		return nil, errors.Errorf("max product ids must be positive, got %d", cfg.MaxProductIDs)
	}
	return &cfg, nil
}

// LoadProductServiceConfig loads the product service configuration from the
// environment, command-line flags and optional YAML files.
func LoadProductServiceConfig() (*ProductServiceConfig, error) {
	return loadProductServiceConfig(os.Args[1:], []string{"config.yaml", "/etc/products/config.yaml"})
}

func loadProductServiceConfig(args, files []string) (*ProductServiceConfig, error) {
	var cfg ProductServiceConfig
	if err := load(&cfg, "PRODUCTS", args, files); err != nil {
		return nil, err
	}
	cfg.DatabaseURL, cfg.Addr = applyPlatformDefaults(cfg.DatabaseURL, cfg.Addr, defaultProductAddr)

	switch {
	case cfg.DatabaseURL == "":
		return nil, errors.New("database URL is required: set PRODUCTS_DATABASE_URL or DATABASE_URL")
	case cfg.MaxBatch <= 0:
		return nil, errors.Errorf("max batch must be positive, got %d", cfg.MaxBatch)
	}
	return &cfg, nil
}

func load(dst any, envPrefix string, args, files []string) error {
	loader := aconfig.LoaderFor(dst, aconfig.Config{
		EnvPrefix: envPrefix,
		Args:      args,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return errors.Wrap(err, "load config")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT onto the
// service configuration.
func applyPlatformDefaults(databaseURL, addr, defaultAddr string) (string, string) {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && addr == defaultAddr {
		addr = "0.0.0.0:" + port
	}
	return databaseURL, addr
}
