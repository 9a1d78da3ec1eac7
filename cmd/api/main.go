package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sharpfade/booking-platform/internal/api/router"
	"github.com/sharpfade/booking-platform/internal/availability"
	"github.com/sharpfade/booking-platform/internal/booking"
	"github.com/sharpfade/booking-platform/internal/catalog"
	appconfig "github.com/sharpfade/booking-platform/internal/config"
	"github.com/sharpfade/booking-platform/internal/ledger"
	"github.com/sharpfade/booking-platform/internal/observability/metrics"
	"github.com/sharpfade/booking-platform/internal/prefs"
	"github.com/sharpfade/booking-platform/internal/session"
	"github.com/sharpfade/booking-platform/pkg/civil"
	"github.com/sharpfade/booking-platform/pkg/logging"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	redisClient, err := newRedisClient(cfg, logger)
	if err != nil {
		logger.Error("failed to start redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Reference data and the simulated pre-existing bookings.
	cat := catalog.Seed()
	led := ledger.New(logger)
	for _, b := range ledger.SeedEntries(civil.DateOf(time.Now())) {
		led.Append(b)
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	engine := availability.NewEngine(availability.DefaultRules(), cat, logger)
	sessions := session.NewManager(cat, led, engine, session.NewStateStore(redisClient), bookingMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(cat, led, engine, sessions, logger),
		PrefsHandler:       prefs.NewHandler(prefs.NewStore(redisClient), logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newRedisClient connects to the configured Redis, or boots an embedded
// in-memory instance when no address is configured. The embedded mode
// keeps the whole system self-contained, matching the simulated-data
// scope: session snapshots and theme preferences then live only as long
// as the process.
func newRedisClient(cfg *appconfig.Config, logger *logging.Logger) (*redis.Client, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		mini, err := miniredis.Run()
		if err != nil {
			return nil, err
		}
		addr = mini.Addr()
		logger.Info("using embedded in-memory redis", "addr", addr)
		return redis.NewClient(&redis.Options{Addr: addr}), nil
	}

	opts := &redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
