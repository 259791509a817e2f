package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
	"github.com/UDDITwork/shipsarthi-sub005/internal/database"
	"github.com/UDDITwork/shipsarthi-sub005/internal/logger"
	"github.com/UDDITwork/shipsarthi-sub005/internal/routes"
	"github.com/UDDITwork/shipsarthi-sub005/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "courier-webhooks",
		Short:        "Receives courier webhooks and applies them to shipments",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server and job worker",
		RunE:  runServe,
	}
	cmd.Flags().Bool("migrate", false, "apply database migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.Init(os.Getenv("LOG_LEVEL"))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			dbCfg, path, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			return database.RunMigrations(dbCfg, path, log)
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	log, err := logger.Init(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err))
		return err
	}

	if migrateFirst, _ := cmd.Flags().GetBool("migrate"); migrateFirst {
		if err := database.RunMigrations(&cfg.Database, cfg.MigrationsPath, log); err != nil {
			logger.Error("Failed to run migrations", zap.Error(err))
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.NewService(ctx, cfg, log)
	if err != nil {
		logger.Error("Failed to initialize service", zap.Error(err))
		return err
	}
	svc.Start(ctx)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Courier Webhooks",
		ServerHeader: "Fiber",
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))

	routes.SetupRoutes(app, svc)

	serverErr := make(chan error, 1)
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Server starting",
			zap.String("address", addr),
			zap.String("notify_sink", cfg.Notify.Sink),
			zap.Bool("redis_cache", cfg.Redis.Enabled()),
		)
		serverErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	logger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during service shutdown", zap.Error(err))
	}

	logger.Info("Server stopped", zap.Any("queue", svc.Queue.Stats()))
	return nil
}
