package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/bootstrap"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/cloud"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/config"
	httpHandlers "github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/http"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/metrics"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/service"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	bootstrap.Logging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := config.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("timezone")
	}

	store, err := bootstrap.OpenStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer store.Close()

	var uploader service.Uploader
	if config.UseCloudServices() {
		s3c, err := cloud.NewS3Client(ctx, config.AWSRegion(), config.S3Bucket())
		if err != nil {
			log.Error().Err(err).Msg("s3 disabled; report export unavailable")
		} else {
			uploader = s3c
		}
	}

	m := metrics.New()
	svcs := service.New(service.QueryConfig{
		Store:    store,
		Cache:    bootstrap.OpenCache(ctx),
		CacheTTL: config.CacheTTL(),
		Location: loc,
		Interval: config.SamplingInterval(),
		Timeout:  config.QueryTimeout(),
		Observer: m,
		Log:      log.Logger,
	}, uploader)

	app := fiber.New(fiber.Config{
		AppName:      "hybrid-energy-telemetry",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())

	httpHandlers.Register(app, svcs, m)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		app.ShutdownWithTimeout(5 * time.Second)
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Str("timezone", loc.String()).Msg("api listening")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server exit")
	}
}
