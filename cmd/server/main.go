// Command server runs the datagate HTTP API.
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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"datagate/internal/api"
	"datagate/internal/audit"
	"datagate/internal/cache"
	"datagate/internal/config"
	"datagate/internal/db"
	"datagate/internal/db/repository"
	"datagate/internal/domain"
	"datagate/internal/engine"
	"datagate/internal/middleware"
	"datagate/internal/relationship"
	"datagate/internal/schema"
	"datagate/internal/service"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "datagate",
		Short:         "Schema-constrained data access gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

// flagEnv maps serve flags to the env vars LoadFromEnv reads. Flags
// take precedence over the environment and .env when set.
var flagEnv = map[string]string{
	"listen":        "LISTEN_ADDR",
	"schema-config": "SCHEMA_CONFIG_PATH",
	"log-level":     "LOG_LEVEL",
	"data-db":       "DATA_DB_PATH",
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		PreRun: func(cmd *cobra.Command, _ []string) {
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				if env, ok := flagEnv[f.Name]; ok && f.Changed {
					os.Setenv(env, f.Value.String())
				}
			})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.Flags().String("listen", "", "listen address (overrides LISTEN_ADDR)")
	cmd.Flags().String("schema-config", "", "schema config path (overrides SCHEMA_CONFIG_PATH)")
	cmd.Flags().String("log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.Flags().String("data-db", "", "data store path (overrides DATA_DB_PATH)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply audit store migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			config.LoadDotEnv(".env")
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			auditDB, err := db.OpenSQLite(cfg.AuditDBPath, "write", 0)
			if err != nil {
				return fmt.Errorf("open audit store: %w", err)
			}
			defer auditDB.Close()
			if err := db.RunMigrations(auditDB); err != nil {
				return fmt.Errorf("migrate audit store: %w", err)
			}
			fmt.Println("audit store migrations applied")
			return nil
		},
	}
}

func serve(ctx context.Context) error {
	config.LoadDotEnv(".env")
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	registry, err := schema.LoadFile(cfg.SchemaConfigPath)
	if err != nil {
		return fmt.Errorf("load schema config: %w", err)
	}
	logger.Info("schema config loaded",
		"path", cfg.SchemaConfigPath,
		"tables", len(registry.TableNames()))

	store, err := db.Open(cfg.DataDriver, cfg.DataDBPath, cfg.DataReadConns)
	if err != nil {
		return fmt.Errorf("open data store: %w", err)
	}
	defer store.Close()

	auditDB, err := db.OpenSQLite(cfg.AuditDBPath, "write", 0)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer auditDB.Close()
	if err := db.RunMigrations(auditDB); err != nil {
		return fmt.Errorf("migrate audit store: %w", err)
	}

	auditRepo := repository.NewAuditRepo(auditDB)
	recorder := audit.NewRecorder(auditRepo, logger, cfg.AuditBuffer)
	defer recorder.Close()

	eng := engine.New(registry, store, recorder, logger)

	var introspector domain.CatalogIntrospector
	switch cfg.DataDriver {
	case db.DriverDuckDB:
		introspector = relationship.NewDuckDBIntrospector(store.Read)
	default:
		introspector = relationship.NewSQLiteIntrospector(store.Read)
	}
	mapper := relationship.NewMapper(introspector)
	schemaCache := cache.New(cfg.CacheTTL)

	dataSvc := service.NewDataService(eng)
	schemaSvc := service.NewSchemaService(registry, introspector, mapper, schemaCache)
	auditSvc := service.NewAuditService(auditRepo)
	handler := api.NewHandler(dataSvc, schemaSvc, auditSvc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.Get("/healthz", api.Healthz)
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	var validator middleware.TokenValidator
	if cfg.Auth.Enabled() {
		validator, err = buildTokenValidator(ctx, cfg)
		if err != nil {
			return fmt.Errorf("init token validator: %w", err)
		}
	}
	r.Route("/v1", func(r chi.Router) {
		if validator != nil {
			r.Use(middleware.Auth(validator))
		}
		r.Mount("/", handler.Routes())
	})

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.CacheSweep, func() {
		if n := schemaSvc.SweepCache(); n > 0 {
			logger.Debug("cache sweep", "expired", n)
		}
	}); err != nil {
		return fmt.Errorf("invalid cache sweep schedule %q: %w", cfg.CacheSweep, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			"addr", cfg.ListenAddr,
			"driver", cfg.DataDriver,
			"env", cfg.Env,
			"auth", cfg.Auth.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildTokenValidator(ctx context.Context, cfg *config.Config) (middleware.TokenValidator, error) {
	if cfg.Auth.IssuerURL != "" {
		return middleware.NewOIDCValidator(ctx, cfg.Auth.IssuerURL, cfg.Auth.Audience)
	}
	return middleware.NewHS256Validator(cfg.Auth.JWTSecret)
}
