package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visitpulse/backend/internal/agents"
	"github.com/visitpulse/backend/internal/domaincheck"
	"github.com/visitpulse/backend/internal/httpapi"
	"github.com/visitpulse/backend/internal/visits"
	"github.com/visitpulse/backend/internal/ws"
	"github.com/visitpulse/backend/pkg/config"
	"github.com/visitpulse/backend/pkg/httpserver"
	"github.com/visitpulse/backend/pkg/jwt"
	"github.com/visitpulse/backend/pkg/logger"
	"github.com/visitpulse/backend/pkg/mongo"
	"github.com/visitpulse/backend/pkg/ratelimiter"
	"github.com/visitpulse/backend/pkg/redis"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	SecretKey string        `env:"SECRET_KEY,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	// Per-minute quotas: public routes are keyed by client IP, tracking
	// routes by credential subject.
	PublicRatePerMinute   int `env:"PUBLIC_RATE_PER_MINUTE" envDefault:"60"`
	TrackingRatePerMinute int `env:"TRACKING_RATE_PER_MINUTE" envDefault:"300"`

	// RedisURL switches the rate limiter to a shared Redis store, required
	// when more than one instance serves traffic. Empty keeps limits local.
	RedisURL string `env:"RATELIMIT_REDIS_URL"`

	Server httpserver.Config
	Mongo  mongo.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Environment, "visitpulse"))
	logger.SetAsDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg appConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Client().Disconnect(disconnectCtx); err != nil {
			log.Warn("mongo disconnect failed", slog.Any("error", err))
		}
	}()
	log.Info("connected to mongodb", slog.String("database", cfg.Mongo.Database))

	tokens, err := jwt.NewFromString(cfg.SecretKey)
	if err != nil {
		return err
	}

	publicLimiter, trackingLimiter, closeLimiters, err := buildLimiters(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiters()

	// Dashboards subscribe from the monitored domains themselves, so the
	// upgrade cannot enforce a same-origin policy.
	hub := ws.NewHub(
		ws.WithLogger(log),
		ws.WithCheckOrigin(func(*http.Request) bool { return true }),
	)
	defer hub.Close()

	handler, err := httpapi.NewRouter(httpapi.Deps{
		Tracker:         visits.NewTracker(visits.NewMongoStore(db), hub, visits.WithLogger(log)),
		Agents:          agents.NewService(agents.NewMongoStore(db)),
		Checker:         domaincheck.New(),
		Tokens:          tokens,
		LiveFeed:        hub,
		IssuanceLimiter: publicLimiter,
		TrackingLimiter: trackingLimiter,
		TokenTTL:        cfg.TokenTTL,
		Logger:          log,
		Liveness:        httpserver.HealthCheckHandler(log),
		Readiness:       httpserver.HealthCheckHandler(log, mongo.Healthcheck(db.Client())),
	})
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server, httpserver.WithLogger(log))
	return srv.Run(ctx, handler)
}

// buildLimiters assembles the two rate limiters over a shared store: Redis
// when configured, in-process otherwise.
func buildLimiters(ctx context.Context, cfg appConfig, log *slog.Logger) (*ratelimiter.TokenBucket, *ratelimiter.TokenBucket, func(), error) {
	var (
		store   ratelimiter.Store
		cleanup func()
	)

	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, redis.Config{
			ConnectionURL:  cfg.RedisURL,
			RetryAttempts:  3,
			RetryInterval:  5 * time.Second,
			ConnectTimeout: 30 * time.Second,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		store = ratelimiter.NewRedisStore(client)
		cleanup = func() { client.Close() }
		log.Info("rate limits backed by redis")
	} else {
		memStore := ratelimiter.NewMemoryStore()
		store = memStore
		cleanup = memStore.Close
	}

	public, err := ratelimiter.NewTokenBucket(store, ratelimiter.PerMinute(cfg.PublicRatePerMinute))
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	tracking, err := ratelimiter.NewTokenBucket(store, ratelimiter.PerMinute(cfg.TrackingRatePerMinute))
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	return public, tracking, cleanup, nil
}
