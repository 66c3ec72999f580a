// Package config содержит логику чтения конфигурации сервиса магазина.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса магазина.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`

	// CatalogAddress — адрес сервиса каталога, из которого чекаут
	// забирает снимки позиций.
	CatalogAddress string `env:"CATALOG_ADDRESS"`

	// NotifierAddress — адрес шлюза доставки уведомлений; пустое значение
	// отключает диспетчер outbox.
	NotifierAddress      string        `env:"NOTIFIER_ADDRESS"`
	NotifierPollInterval time.Duration `env:"NOTIFIER_POLL_INTERVAL"`
	NotifierBatchSize    int           `env:"NOTIFIER_BATCH_SIZE"`

	// LockOrderRows включает блокировку строки заказа перед проверкой
	// охранных условий перехода. Управляется флагом -lock-orders и
	// переменной LOCK_ORDER_ROWS.
	LockOrderRows bool `env:"-"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envCatalogAddress := cfg.CatalogAddress
	envNotifierAddress := cfg.NotifierAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth cookies")
	flag.StringVar(&cfg.CatalogAddress, "c", "", "catalog service address")
	flag.StringVar(&cfg.NotifierAddress, "n", "", "notification gateway address")
	flag.BoolVar(&cfg.LockOrderRows, "lock-orders", true, "lock order row before guarded transitions")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envCatalogAddress != "" {
		cfg.CatalogAddress = envCatalogAddress
	}
	if envNotifierAddress != "" {
		cfg.NotifierAddress = envNotifierAddress
	}
	if v, ok := os.LookupEnv("LOCK_ORDER_ROWS"); ok {
		lock, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse LOCK_ORDER_ROWS: %w", err)
		}
		cfg.LockOrderRows = lock
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.NotifierPollInterval <= 0 {
		cfg.NotifierPollInterval = time.Second
	}
	if cfg.NotifierBatchSize <= 0 {
		cfg.NotifierBatchSize = 100
	}

	return cfg, nil
}
