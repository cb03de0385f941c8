package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/backend"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/cart"
	h "github.com/Hieu4tuoii/smartmall-storefront/internal/http"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/notify"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/payqr"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/paywatch"
)

type Config struct {
	HTTPPort        string
	BackendURL      string
	RedisAddr       string
	KafkaBrokers    []string
	PollInterval    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	QR              payqr.Config
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		BackendURL:      getEnv("BACKEND_URL", "http://localhost:8081"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		PollInterval:    getDuration("POLL_INTERVAL", paywatch.DefaultInterval),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		QR: payqr.Config{
			BankCode:      getEnv("QR_BANK_CODE", "MB"),
			AccountNumber: getEnv("QR_ACCOUNT_NUMBER", "0000000000"),
			AccountName:   getEnv("QR_ACCOUNT_NAME", "SMARTMALL"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	cfg := loadConfig()

	api := backend.NewClient(cfg.BackendURL, cfg.RequestTimeout)

	var cache cart.SnapshotCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		cache = cart.NewRedisCache(client)
	} else {
		memory := cart.NewMemoryCache(5 * time.Minute)
		defer memory.Close()
		cache = memory
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.KafkaBrokers...)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	mutator := cart.NewMutator(api, cache)
	registry := paywatch.NewRegistry(cfg.PollInterval)
	defer registry.Close()

	cartHandler := h.NewCartHandler(mutator, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(api, mutator, cfg.QR, cfg.RequestTimeout)
	paymentHandler := h.NewPaymentHandler(registry, api, mutator, notifier, cfg.PollInterval)

	router := h.NewRouter(cartHandler, checkoutHandler, paymentHandler, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     otelhttp.NewHandler(router, "smartmall-storefront"),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: settlement SSE streams stay open until confirmation
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("storefront gateway starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
