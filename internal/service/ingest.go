package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/battery"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/events"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/telemetry"
)

// IngestRecorder receives pipeline outcomes. *metrics.Metrics implements it.
type IngestRecorder interface {
	ReadingIngested(soc float64)
	ReadingRejected(reason string)
	StoreError(op string)
}

type nopRecorder struct{}

func (nopRecorder) ReadingIngested(float64) {}
func (nopRecorder) ReadingRejected(string)  {}
func (nopRecorder) StoreError(string)       {}

type IngestConfig struct {
	Parser       *telemetry.Parser
	Battery      battery.Model
	Store        repository.Store
	Bus          *events.Bus
	Interval     time.Duration
	StoreTimeout time.Duration
	Recorder     IngestRecorder
	Log          zerolog.Logger
}

// ReadingService turns inbound device messages into persisted readings. It
// owns the battery model; nothing else mutates it.
type ReadingService struct {
	parser       *telemetry.Parser
	battery      battery.Model
	store        repository.Store
	bus          *events.Bus
	interval     time.Duration
	storeTimeout time.Duration
	rec          IngestRecorder
	log          zerolog.Logger
	now          func() time.Time
}

func NewReadingService(cfg IngestConfig) *ReadingService {
	s := &ReadingService{
		parser:       cfg.Parser,
		battery:      cfg.Battery,
		store:        cfg.Store,
		bus:          cfg.Bus,
		interval:     cfg.Interval,
		storeTimeout: cfg.StoreTimeout,
		rec:          cfg.Recorder,
		log:          cfg.Log.With().Str("component", "ingest").Logger(),
		now:          time.Now,
	}
	if s.interval <= 0 {
		s.interval = 5 * time.Second
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	return s
}

// Ingest runs one message through parse, derive, battery update and
// persistence, then announces the stored reading on the bus. Messages must be
// fed in arrival order. A failed write is not rolled back out of the battery
// model.
func (s *ReadingService) Ingest(ctx context.Context, payload []byte) (*domain.Reading, error) {
	r, err := s.parser.Parse(payload, s.now())
	if err != nil {
		s.rec.ReadingRejected("parse")
		return nil, err
	}

	telemetry.Derive(&r)
	r.BatterySoC = s.battery.Apply(r.TurbineWattage, s.interval)

	writeCtx := ctx
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}
	if err := s.store.AppendReading(writeCtx, &r); err != nil {
		s.rec.StoreError("append_reading")
		return nil, fmt.Errorf("persist reading: %w", err)
	}

	s.rec.ReadingIngested(r.BatterySoC)
	if s.bus != nil {
		s.bus.PublishReading(r)
	}
	return &r, nil
}

// FromMQTT is the message handler body. Errors are logged here because the
// MQTT callback has nowhere to return them.
func (s *ReadingService) FromMQTT(topic string, payload []byte) error {
	r, err := s.Ingest(context.Background(), payload)
	if err != nil {
		var pe *telemetry.ParseError
		if errors.As(err, &pe) {
			s.log.Warn().Err(err).Str("topic", topic).Bytes("payload", payload).Msg("discarding malformed reading")
		} else {
			s.log.Error().Err(err).Str("topic", topic).Msg("dropping reading")
		}
		return err
	}
	s.log.Debug().Int64("id", r.ID).Float64("soc", r.BatterySoC).Msg("reading stored")
	return nil
}
