package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mindlab/health/internal/config"
	"github.com/mindlab/health/internal/domain/analytics"
	"github.com/mindlab/health/internal/domain/appointment"
	"github.com/mindlab/health/internal/domain/careteam"
	"github.com/mindlab/health/internal/domain/earnings"
	"github.com/mindlab/health/internal/domain/healthrecord"
	"github.com/mindlab/health/internal/domain/identity"
	"github.com/mindlab/health/internal/domain/messaging"
	"github.com/mindlab/health/internal/domain/nutrition"
	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/domain/security"
	"github.com/mindlab/health/internal/domain/settings"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/calendar"
	"github.com/mindlab/health/internal/platform/db"
	"github.com/mindlab/health/internal/platform/events"
	"github.com/mindlab/health/internal/platform/middleware"
	"github.com/mindlab/health/internal/platform/websocket"
	"github.com/mindlab/health/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "mindlab-server",
		Short:        "MindLab Health API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(ingredientsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// services holds every domain service built over one pool. Event publishing,
// the calendar and the login recorder are attached by serve only.
type services struct {
	resolver  *rbac.Resolver
	policy    rbac.Policy
	rbac      *rbac.Service
	authn     *auth.Authenticator
	identity  *identity.Service
	security  *security.Service
	secRepo   security.Repository
	appts     *appointment.Service
	messages  *messaging.Service
	nutrition *nutrition.Service
	settings  *settings.Service
	analytics *analytics.Service
	careteam  *careteam.Service
	records   *healthrecord.Service
	earnings  *earnings.Service
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *services {
	rbacRepo := rbac.NewRepoPG(pool)
	resolver := rbac.NewResolver(rbacRepo, cfg.RBACCacheTTL)
	policy := rbac.NewPolicy(resolver, rbac.NewAuthorizer(rbacRepo))

	users := identity.NewUserRepoPG(pool)
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTokenTTL)
	authn := auth.NewAuthenticator(identity.NewAccountStore(users), auth.NewHasher(cfg.BcryptCost, logger), tokens)

	identitySvc := identity.NewService(users, authn, policy, resolver, logger)
	identitySvc.SetTokenTTL(cfg.AccessTokenTTL)

	secRepo := security.NewRepoPG(pool)
	careSvc := careteam.NewService(careteam.NewRepoPG(pool), resolver, pool, logger)

	return &services{
		resolver:  resolver,
		policy:    policy,
		rbac:      rbac.NewService(rbacRepo, resolver, pool, logger),
		authn:     authn,
		identity:  identitySvc,
		security:  security.NewService(secRepo, logger),
		secRepo:   secRepo,
		appts:     appointment.NewService(appointment.NewRepoPG(pool), policy, logger),
		messages:  messaging.NewService(messaging.NewRepoPG(pool), resolver, logger),
		nutrition: nutrition.NewService(nutrition.NewRepoPG(pool), policy, pool, logger),
		settings:  settings.NewService(settings.NewRepoPG(pool), resolver, pool, logger),
		analytics: analytics.NewService(analytics.NewRepoPG(pool), logger),
		careteam:  careSvc,
		records:   healthrecord.NewService(healthrecord.NewRepoPG(pool), resolver, careSvc, logger),
		earnings:  earnings.NewService(earnings.NewRepoPG(pool), resolver, logger),
	}
}

func (s *services) setPublisher(p events.Publisher) {
	s.identity.SetPublisher(p)
	s.security.SetPublisher(p)
	s.appts.SetPublisher(p)
	s.messages.SetPublisher(p)
	s.careteam.SetPublisher(p)
	s.records.SetPublisher(p)
	s.earnings.SetPublisher(p)
}

// withServices loads config, opens the pool and hands both to fn. Used by
// the maintenance commands.
func withServices(fn func(ctx context.Context, svc *services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, newServices(cfg, pool, logger))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func rbacCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rbac",
		Short: "Manage the permission catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Upsert the permission catalog and default role grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, svc *services) error {
				res, err := svc.rbac.Seed(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Seeded %d permission(s) and %d grant(s).\n", res.Permissions, res.Grants)
				return nil
			})
		},
	})
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			password, err := passwordFlag(cmd)
			if err != nil {
				return err
			}
			return withServices(func(ctx context.Context, svc *services) error {
				u, err := svc.identity.CreateAdmin(ctx, username, email, password)
				if err != nil {
					return err
				}
				fmt.Printf("Created admin %s (%s).\n", u.Username, u.ID)
				return nil
			})
		},
	}
	createAdmin.Flags().String("username", "admin", "Admin username")
	createAdmin.Flags().String("email", "", "Admin email")
	createAdmin.Flags().String("password", "", "Admin password (defaults to $MINDLAB_PASSWORD)")
	_ = createAdmin.MarkFlagRequired("email")
	cmd.AddCommand(createAdmin)

	resetPassword := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, err := passwordFlag(cmd)
			if err != nil {
				return err
			}
			return withServices(func(ctx context.Context, svc *services) error {
				if err := svc.identity.ResetPassword(ctx, username, password); err != nil {
					return err
				}
				fmt.Printf("Password updated for %s.\n", username)
				return nil
			})
		},
	}
	resetPassword.Flags().String("username", "", "Username")
	resetPassword.Flags().String("password", "", "New password (defaults to $MINDLAB_PASSWORD)")
	_ = resetPassword.MarkFlagRequired("username")
	cmd.AddCommand(resetPassword)

	return cmd
}

// passwordFlag reads --password, falling back to MINDLAB_PASSWORD so the
// secret can stay out of shell history.
func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("MINDLAB_PASSWORD")
	}
	if password == "" {
		return "", fmt.Errorf("--password or MINDLAB_PASSWORD is required")
	}
	return password, nil
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage system settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Insert default settings when none exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(func(ctx context.Context, svc *services) error {
				res, err := svc.settings.Init(ctx)
				if err != nil {
					return err
				}
				if res.Skipped {
					fmt.Println("Settings already present, nothing inserted.")
					return nil
				}
				fmt.Printf("Inserted %d default setting(s).\n", res.Inserted)
				return nil
			})
		},
	})
	return cmd
}

func ingredientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingredients",
		Short: "Manage the ingredient nutrition table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <csv>",
		Short: "Upsert ingredient nutrition rows from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withServices(func(ctx context.Context, svc *services) error {
				res, err := svc.nutrition.ImportIngredients(ctx, f)
				if err != nil {
					return err
				}
				fmt.Printf("Created %d, updated %d ingredient(s).\n", res.Created, res.Updated)
				for _, s := range res.Skipped {
					fmt.Printf("  skipped: %s\n", s)
				}
				return nil
			})
		},
	})
	return cmd
}

// scopeSkipper keeps the long-lived websocket route from pinning a pooled
// connection.
func scopeSkipper(c echo.Context) bool {
	return c.Path() == "/api/ws"
}

func buildPublisher(cfg *config.Config, hub *websocket.Hub, secRepo security.Repository, logger zerolog.Logger) (events.Multi, func()) {
	pub := events.Multi{hub, security.NewAuditSink(secRepo)}
	closeFn := func() {}
	if cfg.AMQPURL == "" {
		return pub, closeFn
	}
	rabbit, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable, broker publishing disabled")
		return pub, closeFn
	}
	logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing events to rabbitmq")
	return append(pub, rabbit), func() { _ = rabbit.Close() }
}

func buildCalendar(ctx context.Context, cfg *config.Config, logger zerolog.Logger) calendar.Syncer {
	if !cfg.CalendarEnabled() {
		return calendar.Nop{}
	}
	g, err := calendar.NewGoogleSyncer(ctx, cfg.CalendarCredentials, cfg.CalendarID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google calendar unavailable, sync disabled")
		return calendar.Nop{}
	}
	logger.Info().Str("calendar_id", cfg.CalendarID).Msg("google calendar sync enabled")
	return g
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	svc := newServices(cfg, pool, logger)

	hub := websocket.NewHub(logger)
	publisher, closePublisher := buildPublisher(cfg, hub, svc.secRepo, logger)
	defer closePublisher()
	svc.setPublisher(publisher)
	svc.identity.SetLoginRecorder(svc.security)
	svc.appts.SetCalendar(buildCalendar(ctx, cfg, logger))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, logger))
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(middleware.DeniedAudit(logger, svc.security))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	// API group
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	api := e.Group("/api")
	api.Use(db.RequestScope(pool, scopeSkipper))
	api.Use(auth.BearerAuth(svc.authn, auth.AuthSkipper))
	api.Use(middleware.RateLimit(rateLimitCfg))

	identity.NewHandler(svc.identity, svc.resolver).RegisterRoutes(api, middleware.LoginRateLimit(cfg.LoginRateLimitPerMin))
	rbac.NewHandler(svc.rbac).RegisterRoutes(api)
	appointment.NewHandler(svc.appts, svc.resolver).RegisterRoutes(api)
	messaging.NewHandler(svc.messages, svc.resolver).RegisterRoutes(api)
	nutrition.NewHandler(svc.nutrition, svc.resolver).RegisterRoutes(api)
	settings.NewHandler(svc.settings, svc.resolver).RegisterRoutes(api)
	analytics.NewHandler(svc.analytics, svc.resolver).RegisterRoutes(api)
	security.NewHandler(svc.security, svc.resolver).RegisterRoutes(api)
	careteam.NewHandler(svc.careteam, svc.resolver).RegisterRoutes(api)
	healthrecord.NewHandler(svc.records, svc.resolver).RegisterRoutes(api)
	earnings.NewHandler(svc.earnings, svc.resolver).RegisterRoutes(api)
	websocket.NewHandler(hub, svc.resolver, rbac.PermSecurityView, cfg.CORSOrigins, logger).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
