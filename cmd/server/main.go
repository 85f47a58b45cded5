package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"studiobook/internal/api"
	"studiobook/internal/booking"
	"studiobook/internal/calendar"
	"studiobook/internal/catalog"
	"studiobook/internal/checkout"
	"studiobook/internal/config"
	"studiobook/internal/metrics"
	"studiobook/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
	}

	engine, err := cfg.Engine()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid engine configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := store.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	if cfg.Backup.Enabled {
		backups := store.NewBackupService(database, cfg.Backup.Path, cfg.BackupInterval(), cfg.BackupRetention(), &logger)
		go backups.Start(ctx)
	}

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	holder := catalog.NewHolder(nil)

	var busy calendar.BusySource = calendar.NewStaticSource(nil, engine.Schedule.Location(), engine.Schedule.Cooldown())
	if cfg.Calendar.Enabled {
		busy, err = calendar.NewGoogleSource(ctx, calendar.GoogleOptions{
			CredentialsFile:   cfg.Calendar.CredentialsFile,
			Endpoint:          cfg.Calendar.Endpoint,
			Timeout:           cfg.CalendarTimeout(),
			RequestsPerSecond: cfg.Calendar.RequestsPerSecond,
			Burst:             cfg.Calendar.Burst,
			Location:          engine.Schedule.Location(),
			Lookback:          engine.Schedule.Cooldown(),
		}, holder, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("google calendar init failed")
		}
	} else {
		logger.Warn().Msg("calendar disabled, every slot within operating hours is free")
	}
	if rdb != nil && cfg.CacheTTL() > 0 {
		busy = calendar.NewCachedSource(busy, rdb, cfg.CacheTTL(), engine.Schedule.Location())
	}

	opts := []booking.Option{booking.WithStore(database)}
	payments := checkout.NewService(checkout.Options{
		SecretKey:  cfg.Stripe.SecretKey,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Currency:   cfg.Stripe.Currency,
	}, &logger)
	if payments.Enabled() {
		opts = append(opts, booking.WithPayments(payments))
	} else {
		logger.Warn().Msg("stripe secret key not set, checkout disabled")
	}

	svc := booking.NewService(booking.Rules(engine), holder, busy, &logger, opts...)

	err = config.WatchCatalog(ctx, cfg.Catalog.Path, cfg.CatalogReloadInterval(),
		func(cat *catalog.Catalog) {
			if err := svc.ApplyCatalog(ctx, cat); err != nil {
				logger.Error().Err(err).Msg("apply catalog failed")
			}
		},
		func(err error) {
			metrics.IncCatalogReload("error")
			logger.Error().Err(err).Msg("catalog reload failed, keeping previous catalog")
		})
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalog error")
	}
	if _, err := svc.Catalog(); err != nil {
		logger.Fatal().Err(err).Msg("no catalog available")
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(api.NewHandler(svc, &logger)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
	go shutdownOnDone(ctx, srv)

	logger.Info().Int("port", cfg.Server.Port).Msg("studio booking api started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("shutdown complete")
}

func shutdownOnDone(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
}

func startHealthServer(ctx context.Context, port int, database *store.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go shutdownOnDone(ctx, srv)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go shutdownOnDone(ctx, srv)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
