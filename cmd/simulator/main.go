package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/bootstrap"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/config"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/simulator"
)

func main() {
	format := flag.String("format", "csv", "payload encoding: csv or json")
	withRPM := flag.Bool("rpm", false, "emit the eight field payload with rotor RPM")
	count := flag.Int("count", 0, "stop after this many messages (0 runs until interrupted)")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	bootstrap.Logging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := mqtt.NewClientOptions().
		AddBroker(config.MQTTBroker()).
		SetClientID(config.MQTTClientID() + "-simulator")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	device := simulator.NewDevice(rand.NewSource(time.Now().UnixNano()))
	topic := config.MQTTTopic()
	ticker := time.NewTicker(config.SamplingInterval())
	defer ticker.Stop()

	log.Info().Str("topic", topic).Str("format", *format).Bool("rpm", *withRPM).Msg("simulation started")
	for sent := 0; *count == 0 || sent < *count; sent++ {
		now := time.Now()
		s := device.Next(now)

		var payload []byte
		if *format == "json" {
			b, err := s.JSON(*withRPM, now)
			if err != nil {
				log.Fatal().Err(err).Msg("encode sample")
			}
			payload = b
		} else {
			payload = []byte(s.CSV(*withRPM))
		}

		token := client.Publish(topic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Msg("publish failed")
		} else if s.Temperature >= 50 {
			log.Info().Bytes("payload", payload).Msg("sent (battery hot)")
		} else {
			log.Debug().Bytes("payload", payload).Msg("sent")
		}

		select {
		case <-ctx.Done():
			log.Info().Int("sent", sent+1).Msg("simulation stopped")
			return
		case <-ticker.C:
		}
	}
	log.Info().Int("sent", *count).Msg("simulation done")
}
