// Command authgate-server runs the HTTP auth service. Configuration
// comes from the environment; a .env file is loaded when present.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/httpserver"
	"github.com/MrEthical07/authgate/userstore/memory"
	"github.com/MrEthical07/authgate/userstore/postgres"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			logger.Fatal().Err(err).Msg("sentry init")
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	store, cleanup, err := credentialStore(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithAuditSink(authgate.NewZerologSink(logger.With().Str("component", "audit").Logger())).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              envOr("LISTEN_ADDR", ":8080"),
		Handler:           httpserver.New(engine, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// credentialStore picks Postgres when DATABASE_URL is set, otherwise
// an in-memory store for local runs.
func credentialStore(ctx context.Context, logger zerolog.Logger) (authgate.CredentialStore, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Warn().Msg("DATABASE_URL unset, using in-memory credential store")
		return memory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	store := postgres.New(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func configFromEnv() (authgate.Config, error) {
	var cfg authgate.Config
	switch envOr("AUTH_PRESET", "default") {
	case "relaxed":
		cfg = authgate.RelaxedPreset()
	case "strict":
		cfg = authgate.StrictPreset()
	default:
		cfg = authgate.DefaultConfig()
	}

	cfg.Token.AccessSecret = []byte(os.Getenv("ACCESS_TOKEN_SECRET"))
	cfg.Token.RefreshSecret = []byte(os.Getenv("REFRESH_TOKEN_SECRET"))
	if issuer := os.Getenv("TOKEN_ISSUER"); issuer != "" {
		cfg.Token.Issuer = issuer
	}
	if audience := os.Getenv("TOKEN_AUDIENCE"); audience != "" {
		cfg.Token.Audience = audience
	}
	if v := os.Getenv("LOCKOUT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return authgate.Config{}, err
		}
		cfg.Lockout.Threshold = n
	}
	if v := os.Getenv("LOCKOUT_EXTEND_WHILE_LOCKED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return authgate.Config{}, err
		}
		cfg.Lockout.ExtendWhileLocked = b
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
