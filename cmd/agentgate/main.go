package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/agentgate/internal/app"
	"github.com/dropDatabas3/agentgate/internal/audit"
	"github.com/dropDatabas3/agentgate/internal/auth"
	"github.com/dropDatabas3/agentgate/internal/auth/credential"
	"github.com/dropDatabas3/agentgate/internal/auth/nonce"
	"github.com/dropDatabas3/agentgate/internal/auth/ratelimit"
	"github.com/dropDatabas3/agentgate/internal/config"
	httpserver "github.com/dropDatabas3/agentgate/internal/http"
	"github.com/dropDatabas3/agentgate/internal/http/router"
	"github.com/dropDatabas3/agentgate/internal/metrics"
	"github.com/dropDatabas3/agentgate/internal/observability/logger"
	"github.com/dropDatabas3/agentgate/internal/store/memory"
	"github.com/dropDatabas3/agentgate/internal/store/pg"
	pgmigrations "github.com/dropDatabas3/agentgate/migrations/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath  = flag.String("config", "config.yaml", "ruta del YAML de configuración")
		migrate     = flag.Bool("migrate", true, "aplicar migraciones pendientes al arrancar (solo postgres)")
		checkConfig = flag.Bool("check-config", false, "validar la configuración y salir")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger todavía no inicializado
		panic("config: " + err.Error())
	}
	if *checkConfig {
		os.Stdout.WriteString("config ok\n")
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "agentgate",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	if err := metrics.RegisterAuth(prometheus.DefaultRegisterer); err != nil {
		log.Fatal("metrics register", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &app.Container{AdminKeyHash: cfg.Auth.AdminKeyHash}

	// ── storage ──
	switch cfg.Storage.Driver {
	case "postgres":
		store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
			ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime),
			MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
			MinConns:        int32(cfg.Storage.Postgres.MinConns),
		})
		if err != nil {
			log.Fatal("postgres connect", logger.Err(err))
		}
		defer store.Close()
		if *migrate {
			if err := store.Migrate(ctx, pgmigrations.FS); err != nil {
				log.Fatal("migrate", logger.Err(err))
			}
		}
		c.Credentials = store.Credentials()
		c.Principals = store.Credentials()
		c.Nonces = store.Nonces()
		c.AuditRepo = store.Audit()
		c.Ping = store.Ping
	case "memory":
		store := memory.New()
		c.Credentials = store
		c.Principals = store
		c.Nonces = store
		c.AuditRepo = store
		log.Warn("storage driver memory: el ledger de nonces no sobrevive restarts")
	default:
		log.Fatal("storage driver desconocido", logger.String("driver", cfg.Storage.Driver))
	}

	// ── rate limiter ──
	rateCfg := ratelimit.Config{
		Limits: map[ratelimit.Dimension]ratelimit.LimitConfig{
			ratelimit.DimensionOrigin:     {Max: int64(cfg.Rate.Origin.Limit), Window: config.Dur(cfg.Rate.Origin.Window)},
			ratelimit.DimensionCredential: {Max: int64(cfg.Rate.Credential.Limit), Window: config.Dur(cfg.Rate.Credential.Window)},
			ratelimit.DimensionOperation:  {Max: int64(cfg.Rate.Operation.Limit), Window: config.Dur(cfg.Rate.Operation.Window)},
		},
		FailureThreshold: int64(cfg.Rate.FailureThreshold),
		FailureWindow:    config.Dur(cfg.Rate.FailureWindow),
		FreezeDuration:   config.Dur(cfg.Rate.FreezeDuration),
	}
	switch cfg.Cache.Kind {
	case "redis":
		client := rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			// fail-open: el limiter degrada, no bloquea el arranque
			log.Warn("redis ping", logger.Err(err))
		}
		c.Limiter = ratelimit.NewRedisLimiter(client, cfg.Cache.Redis.Prefix, rateCfg)
	default:
		c.Limiter = ratelimit.NewMemoryLimiter(rateCfg)
	}

	// ── pipeline ──
	c.Resolver = credential.NewResolver(c.Credentials, c.Principals)
	c.Ledger = nonce.NewLedger(c.Nonces, nonce.Options{
		Shards:    cfg.Auth.NonceShards,
		Retention: config.Dur(cfg.Auth.NonceRetention),
	})
	defer c.Ledger.Close()
	c.Auditor = audit.NewWriter(c.AuditRepo)
	c.Orch = auth.NewOrchestrator(c.Resolver, c.Limiter, c.Ledger, c.Auditor, nil)

	// ── listeners ──
	metricsHandler := httpserver.RegisterMetrics(prometheus.DefaultRegisterer)
	apiHandler := router.New(c)
	if cfg.Server.MetricsAddr == "" {
		// sin listener dedicado, /metrics va en el listener principal
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		mux.Handle("/", apiHandler)
		apiHandler = mux
	}
	api := httpserver.NewServer(cfg.Server.Addr, apiHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(api.ListenAndServe)

	var metricsSrv *httpserver.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		metricsSrv = httpserver.NewServer(cfg.Server.MetricsAddr, mux)
		g.Go(metricsSrv.ListenAndServe)
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return api.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exit", logger.Err(err))
		os.Exit(1)
	}
	log.Info("bye")
}
