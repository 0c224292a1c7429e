package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	coreconfig "github.com/evobridge/evobridge/core/config"
	coreDB "github.com/evobridge/evobridge/core/database"
	infraValkey "github.com/evobridge/evobridge/infrastructure/valkey"
	"github.com/evobridge/evobridge/pkg/guard"
	"github.com/evobridge/evobridge/pkg/msgworker"
	"github.com/evobridge/evobridge/repository"
	"github.com/evobridge/evobridge/ui/rest"
	"github.com/evobridge/evobridge/ui/rest/middleware"
	"github.com/evobridge/evobridge/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run the webhook ingestion server",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := coreconfig.Global
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[REST] database: %v", err)
	}

	channels := repository.NewChannelGormRepository(db)
	if err := channels.Init(ctx); err != nil {
		logrus.Fatalf("[REST] channel migrations: %v", err)
	}
	store := repository.NewMessagingGormStore(db)
	if err := store.Init(ctx); err != nil {
		logrus.Fatalf("[REST] messaging migrations: %v", err)
	}

	// The marker store degrades to process-local memory when Valkey is off,
	// which is only safe for single-instance deployments.
	var markers guard.MarkerStore = guard.NewMemoryStore()
	var valkeyClient *infraValkey.Client
	if cfg.Database.ValkeyEnabled {
		valkeyClient, err = infraValkey.NewClient(infraValkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("[REST] valkey: %v", err)
		}
		markers = guard.NewValkeyStore(valkeyClient)
		logrus.Info("[REST] using valkey markers")
	} else {
		logrus.Warn("[REST] valkey disabled, markers are process-local")
	}
	guards := guard.New(markers)

	pool := msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start(ctx)

	resolver := usecase.NewChannelResolver(channels)
	ingest := usecase.NewIngestService(store, channels, guards, usecase.EvolutionGateway, usecase.LogNotifier{})
	outbound := usecase.NewOutboundService(store, guards, usecase.EvolutionGateway)
	outbound.PublicMediaURLs = cfg.Evolution.PublicMediaURLs
	provision := usecase.NewProvisionService(channels, cfg.Evolution.WebhookURL)

	app := fiber.New(fiber.Config{
		AppName:      "evobridge " + cfg.App.Version,
		Network:      "tcp",
		ServerHeader: "Hidden",
		BodyLimit:    50 * 1024 * 1024,
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	rest.InitRestWebhook(app, resolver, ingest, pool)
	rest.InitRestChannel(app, provision)
	rest.InitRestMessage(app, outbound, channels)
	rest.InitRestHealth(app, pool)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] termination signal, shutting down")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] fiber shutdown: %v", err)
		}
		pool.Stop()
		cancel()
		if valkeyClient != nil {
			valkeyClient.Close()
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalf("[REST] listen: %v", err)
	}
}
