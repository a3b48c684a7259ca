package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agroplan/planner/internal/config"
	"github.com/agroplan/planner/internal/database"
	"github.com/agroplan/planner/internal/handler"
	"github.com/agroplan/planner/internal/logging"
	"github.com/agroplan/planner/internal/middleware"
	"github.com/agroplan/planner/internal/queue"
	"github.com/agroplan/planner/internal/repository"
	"github.com/agroplan/planner/internal/router"
	"github.com/agroplan/planner/internal/service"
	"github.com/agroplan/planner/internal/utils"
)

func main() {
	config.LoadDotEnv()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "planner",
		Short:        "Farm program planning API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(serveCmd(), migrateCmd(), tokenCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the program event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create every table and index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := logging.New(cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("schema migrated", zap.String("db", cfg.DBName))
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID     string
		role       string
		consultant string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			tok, err := utils.NewAccessToken(cfg.JWTSecret, userID, role, consultant, cfg.TokenTTLMin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "dev", "subject claim")
	cmd.Flags().StringVar(&role, "role", "admin", "role claim (admin, gestor, consultor)")
	cmd.Flags().StringVar(&consultant, "consultant", "", "consultant_code claim")
	return cmd
}

func serve(parent context.Context) error {
	cfg := config.Load()
	log, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	qcfg := config.LoadQueueConfig()
	var events service.EventPublisher
	if qcfg.Enabled {
		events = queue.NewPublisher(qcfg.URL, qcfg.Queue, log)
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}

	grants := repository.NewGrantRepo(db)
	programs := handler.NewProgramHandler(
		service.NewProgramService(db, repository.NewCatalogRepo(db), events, log),
		repository.NewProgramQuery(db),
		log,
	)
	browse := handler.NewBrowseHandler(repository.NewProducerRepo(db), repository.NewPlotRepo(db), repository.NewReferenceRepo(db), log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLog(log))
	router.RegisterRoutes(e, db)
	router.RegisterPrograms(e, programs, cfg.JWTSecret, grants, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterBrowse(e, browse, cfg.JWTSecret, grants, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if qcfg.Enabled && qcfg.ConsumerEnabled {
		consumer := queue.NewAuditConsumer(qcfg.URL, qcfg.Queue, qcfg.AuditLogPath, log)
		g.Go(func() error {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
