package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	rbac "github.com/bohemiyan/insights-rbac"
	"github.com/bohemiyan/insights-rbac/internal/auth"
	"github.com/bohemiyan/insights-rbac/internal/config"
	"github.com/bohemiyan/insights-rbac/internal/db"
	"github.com/bohemiyan/insights-rbac/internal/llm"
	"github.com/bohemiyan/insights-rbac/internal/routes"
	"github.com/bohemiyan/insights-rbac/internal/seed"
	"github.com/bohemiyan/insights-rbac/internal/tracing"
	"github.com/bohemiyan/insights-rbac/zapLogger"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "insights-rbac",
		Short:         "Access control and data scoping for the people-analytics dashboard",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context(), envFile) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withService(cmd.Context(), envFile, false, func(_ *app) error { return nil })
			},
		},
		seedCmd(&envFile),
		tokenCmd(&envFile),
	)
	return root
}

func seedCmd(envFile *string) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the stock roles and permissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), *envFile, false, func(a *app) error {
				if !demo {
					return seed.Roles(cmd.Context(), a.svc)
				}
				org, err := seed.Demo(cmd.Context(), a.svc)
				if err != nil {
					return err
				}
				for name, id := range org.Employees {
					zapLogger.Log.Infow("seeded employee", "name", name, "id", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "also create a demo organisation")
	return cmd
}

func tokenCmd(envFile *string) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an employee, looked up by email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), *envFile, false, func(a *app) error {
				emp, err := a.svc.GetEmployeeByEmail(cmd.Context(), email)
				if err != nil {
					return fmt.Errorf("employee %s: %w", email, err)
				}
				issuer, err := auth.NewIssuer(a.cfg.JWTSecret, a.cfg.JWTTTL)
				if err != nil {
					return err
				}
				token, err := issuer.IssueToken(emp.ID, emp.Email)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "employee email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

type app struct {
	cfg      *config.Config
	svc      *rbac.RBACService
	registry *prometheus.Registry
}

// withService wires config, logging, stores and the service, runs fn, then closes everything.
func withService(ctx context.Context, envFile string, withMetrics bool, fn func(*app) error) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := zapLogger.Init(zapLogger.Options{Path: cfg.LogPath, Level: cfg.LogLevel})
	defer zapLogger.Sync()

	pgDB, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgDB.Close()
	log.Info("Successfully connected to PostgreSQL database")

	redisDB, err := db.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	if redisDB != nil {
		defer redisDB.Close()
		log.Info("Successfully connected to Redis")
	}

	registry := prometheus.NewRegistry()
	var metrics *rbac.Metrics
	if withMetrics {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = rbac.NewMetrics(registry)
	}

	rbacConfig := rbac.Config{
		DB:          pgDB.GormDB,
		RedisClient: redisDB,
		CacheTTL:    cfg.CacheTTL,
		CachePrefix: cfg.CachePrefix,
		AutoMigrate: true,
		Logger:      log,
		Metrics:     metrics,
	}
	if cfg.LLMEndpoint != "" {
		rbacConfig.Formatter = llm.NewFormatter(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	}

	svc, err := rbac.NewRBACService(rbacConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize RBAC service: %w", err)
	}
	return fn(&app{cfg: cfg, svc: svc, registry: registry})
}

func serve(ctx context.Context, envFile string) error {
	return withService(ctx, envFile, true, func(a *app) error {
		issuer, err := auth.NewIssuer(a.cfg.JWTSecret, a.cfg.JWTTTL)
		if err != nil {
			return err
		}
		shutdownTracing, err := tracing.Init(ctx, "insights-rbac", a.cfg.OTelEndpoint, a.cfg.OTelSampleRatio)
		if err != nil {
			zapLogger.Log.Warnw("tracing disabled", "error", err)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				zapLogger.Log.Warnw("tracer shutdown failed", "error", err)
			}
		}()

		server := fiber.New(fiber.Config{AppName: "insights-rbac"})
		server.Use(zapLogger.FiberLoggingMiddleware())
		routes.Setup(server, a.svc, issuer, a.registry, zapLogger.Log)

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-sigCtx.Done()
			_ = server.Shutdown()
		}()

		addr := fmt.Sprintf(":%d", a.cfg.AppPort)
		zapLogger.Log.Infof("Server started on port %d", a.cfg.AppPort)
		return server.Listen(addr)
	})
}
