package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/alert"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/battery"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/bootstrap"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/cloud"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/config"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/events"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/live"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/metrics"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/service"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/stream"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/telemetry"
)

const subscriberBuffer = 256

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	bootstrap.Logging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer store.Close()

	mapping, err := telemetry.Mapping(config.FieldMappingVersion())
	if err != nil {
		log.Fatal().Err(err).Msg("field mapping")
	}
	parser, err := telemetry.NewParser(mapping, telemetry.Encoding(config.PayloadEncoding()))
	if err != nil {
		log.Fatal().Err(err).Msg("parser")
	}

	strategy := battery.Strategy(config.BatteryStrategy())
	if strategy == battery.StrategyRandomPlaceholder {
		log.Warn().Msg("BATTERY_STRATEGY=random_placeholder is deprecated; SoC values are random")
	}
	batt, err := battery.New(battery.Config{
		Strategy:        strategy,
		CapacityWh:      config.BatteryCapacityWh(),
		InitialFraction: config.BatteryInitialFraction(),
		LoadWatts:       config.BatteryLoadWatts(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("battery model")
	}

	m := metrics.New()
	bus := events.NewBus(log.Logger)
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// Alert evaluation: exactly one goroutine, so dedup check-then-insert
	// cannot race with itself.
	evaluator := alert.NewEvaluator(store, alert.DefaultRules(config.LowRPMAlertEnabled()), m, log.Logger)
	worker := service.NewAlertWorker(evaluator, bus, config.StoreTimeout(), log.Logger)
	readingsForAlerts := bus.Subscribe(events.ReadingPersisted, subscriberBuffer)
	spawn(func() { worker.Run(ctx, readingsForAlerts) })

	hub := live.NewHub(log.Logger)
	liveReadings := bus.Subscribe(events.ReadingPersisted, subscriberBuffer)
	liveAlerts := bus.Subscribe(events.AlertRaised, subscriberBuffer)
	spawn(func() { hub.Run(ctx) })
	spawn(func() { hub.Consume(ctx, liveReadings, liveAlerts) })

	if brokers := config.KafkaBrokers(); len(brokers) > 0 {
		fwd := stream.NewForwarder(stream.NewWriter(brokers, config.KafkaTopic()), config.DeviceID(), m, log.Logger)
		in := bus.Subscribe(events.ReadingPersisted, subscriberBuffer)
		spawn(func() { fwd.Run(ctx, in) })
		log.Info().Strs("brokers", brokers).Str("topic", config.KafkaTopic()).Msg("kafka forwarding enabled")
	}

	if config.UseCloudServices() && config.SNSTopicArn() != "" {
		notifier, err := cloud.NewSNSNotifier(ctx, config.AWSRegion(), config.SNSTopicArn(), config.DeviceID(), m, log.Logger)
		if err != nil {
			log.Error().Err(err).Msg("sns notifier disabled")
		} else {
			in := bus.Subscribe(events.AlertRaised, subscriberBuffer)
			spawn(func() { notifier.Run(ctx, in) })
		}
	}

	srv := live.NewServer(config.LiveAddr(), hub, m.Handler())
	spawn(func() {
		log.Info().Str("addr", srv.Addr).Msg("live feed listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("live server exit")
		}
	})

	readings := service.NewReadingService(service.IngestConfig{
		Parser:       parser,
		Battery:      batt,
		Store:        store,
		Bus:          bus,
		Interval:     config.SamplingInterval(),
		StoreTimeout: config.StoreTimeout(),
		Recorder:     m,
		Log:          log.Logger,
	})

	// Readings must be applied to the battery in arrival order, so the
	// handler runs on paho's single ordered delivery goroutine.
	opts := mqtt.NewClientOptions().
		AddBroker(config.MQTTBroker()).
		SetClientID(config.MQTTClientID()).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		readings.FromMQTT(msg.Topic(), msg.Payload())
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(config.MQTTTopic(), 1, handler); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", config.MQTTTopic()).Msg("subscribe failed")
			return
		}
		log.Info().Str("topic", config.MQTTTopic()).Msg("subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}

	log.Info().
		Str("device", config.DeviceID()).
		Str("mapping", mapping.Version).
		Str("battery", string(strategy)).
		Msg("ingestor running; Ctrl+C to stop")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	client.Disconnect(250)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	bus.Close()
	wg.Wait()
}
