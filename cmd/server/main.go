package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"meridian/internal/audit"
	"meridian/internal/notify"
	orderhandler "meridian/internal/order/handler"
	ordermetrics "meridian/internal/order/metrics"
	orderservice "meridian/internal/order/service"
	orderstore "meridian/internal/order/store/order"
	"meridian/internal/platform/config"
	"meridian/internal/platform/database"
	"meridian/internal/platform/health"
	"meridian/internal/platform/httpserver"
	"meridian/internal/platform/kafka/producer"
	"meridian/internal/platform/logger"
	platformredis "meridian/internal/platform/redis"
	"meridian/internal/platform/seed"
	ratelimitmetrics "meridian/internal/ratelimit/metrics"
	ratelimitmw "meridian/internal/ratelimit/middleware"
	ratelimitservice "meridian/internal/ratelimit/service"
	"meridian/internal/ratelimit/store/window"
	"meridian/internal/ratelimit/workers/cleanup"
	"meridian/internal/server"
	"meridian/internal/token"
	userhandler "meridian/internal/user/handler"
	usermetrics "meridian/internal/user/metrics"
	userservice "meridian/internal/user/service"
	userstore "meridian/internal/user/store/user"
	"meridian/pkg/platform/circuit"
	"meridian/pkg/platform/middleware/request"
	"meridian/pkg/platform/tracer"
)

// main wires dependencies and runs the server lifecycle. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level)

	if err := run(cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	log.Info("initializing meridian",
		"addr", cfg.Server.Addr,
		"env", cfg.Server.Env,
		"rate_limit_backend", cfg.RateLimit.Backend,
	)

	reg := prometheus.NewRegistry()

	// Spans go to the global OpenTelemetry provider when tracing is on;
	// otherwise every instrumented call site gets the no-op tracer.
	var trc tracer.Tracer = tracer.NewNoop()
	if cfg.Tracing.Enabled {
		trc = tracer.NewOTel()
		log.Info("tracing enabled")
	}

	// Postgres is optional: without DATABASE_URL everything runs on the
	// in-memory stores.
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxOpenConns = int(cfg.Database.MaxConns)
	dbCfg.ConnTimeout = cfg.Database.ConnTimeout
	dbCfg.ConnMaxLifetime = cfg.Database.MaxConnLifetime
	db, err := database.New(dbCfg)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}

	var users userservice.Store
	var orders orderservice.Store
	if db != nil {
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		users = userstore.NewPostgres(db.DB())
		orders = orderstore.NewPostgres(db.DB())
		log.Info("using postgres stores")
	} else {
		users = userstore.NewInMemory()
		orders = orderstore.NewInMemory()
		log.Info("using in-memory stores")
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Rate limiting: the Redis backend shares one budget across
	// instances; the in-memory backend needs the janitor to evict idle
	// windows.
	var limiter ratelimitmw.Checker
	var janitor *cleanup.Worker
	if cfg.RateLimit.Enabled {
		rlMetrics := ratelimitmetrics.New(reg)
		var winStore window.Store
		if cfg.RateLimit.Backend == "redis" && rdb != nil {
			winStore = window.NewRedisStore(rdb)
			log.Info("rate limiting on redis")
		} else {
			memStore := window.NewMemoryStore()
			winStore = memStore
			janitor = cleanup.New(memStore,
				cleanup.WithLogger(log),
				cleanup.WithInterval(cfg.RateLimit.CleanupInterval),
				cleanup.WithMetrics(rlMetrics),
			)
			log.Info("rate limiting in memory")
		}
		limiter = ratelimitservice.New(winStore,
			ratelimitservice.PoliciesFromConfig(cfg.RateLimit),
			ratelimitservice.WithLogger(log),
			ratelimitservice.WithMetrics(rlMetrics),
			ratelimitservice.WithTracer(trc),
		)
	}

	tokens := token.NewService(cfg.JWT.SigningKey, "meridian", cfg.JWT.TokenTTL)

	var sender notify.Sender
	if cfg.SMTP.Enabled {
		smtp := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		sender = notify.NewResilientSender(smtp, circuit.New("smtp"), log)
		log.Info("email notifications via smtp", "host", cfg.SMTP.Host)
	} else {
		sender = notify.NewLogSender(log)
	}
	notifier := notify.NewQueued(sender,
		notify.WithLogger(log),
		notify.WithMetrics(notify.NewMetrics(reg)),
	)

	var auditPub audit.Publisher = audit.NewLogPublisher(log)
	var kafkaProducer *producer.Producer
	if cfg.Kafka.Enabled {
		p, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			log.Warn("kafka unavailable, audit events go to the log", "error", err)
		} else {
			kafkaProducer = p
			auditPub = audit.NewKafkaPublisher(p, cfg.Kafka.Topic, log)
			log.Info("audit events on kafka", "topic", cfg.Kafka.Topic)
		}
	}

	userSvc := userservice.New(users, tokens,
		userservice.WithLogger(log),
		userservice.WithAuditPublisher(auditPub),
		userservice.WithNotifier(notifier),
		userservice.WithMetrics(usermetrics.New(reg)),
		userservice.WithTracer(trc),
	)
	orderSvc := orderservice.New(orders,
		orderservice.WithLogger(log),
		orderservice.WithAuditPublisher(auditPub),
		orderservice.WithMetrics(ordermetrics.New(reg)),
		orderservice.WithTracer(trc),
	)

	if cfg.Seed.Enabled {
		if err := seed.New(users, log, bcrypt.DefaultCost).Run(context.Background()); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	healthHandler := health.New(cfg.Server.Env)
	if db != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Health(ctx)
		})
	}
	if rdb != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Health(ctx)
		})
	}
	if kafkaProducer != nil {
		healthHandler.RegisterCheck("kafka", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if !kafkaProducer.Healthy(ctx) {
				return errors.New("kafka unreachable")
			}
			return nil
		})
	}

	router := server.New(cfg.HTTP, server.Deps{
		Logger:   log,
		Health:   healthHandler,
		Users:    userhandler.New(userSvc, log),
		Orders:   orderhandler.New(orderSvc, log),
		Verifier: token.PrincipalVerifier(tokens),
		Limiter:  limiter,
		Requests: request.NewMetrics(reg),
		Gatherer: reg,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if janitor != nil {
		g.Go(func() error {
			if err := janitor.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Drain queued notifications and buffered audit events before the
	// process exits.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if closeErr := notifier.Close(drainCtx); closeErr != nil {
		log.Warn("notifier drain incomplete", "error", closeErr)
	}
	if kafkaProducer != nil {
		if unflushed := kafkaProducer.Flush(cfg.Server.ShutdownTimeout); unflushed > 0 {
			log.Warn("audit events dropped at shutdown", "count", unflushed)
		}
		if closeErr := kafkaProducer.Close(); closeErr != nil {
			log.Warn("kafka producer close failed", "error", closeErr)
		}
	}

	return err
}
