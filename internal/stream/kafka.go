// Package stream forwards persisted readings to Kafka for downstream
// consumers. Forwarding is best effort.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/events"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ForwardObserver interface {
	Forwarded(sink string, err error)
}

type Forwarder struct {
	w        MessageWriter
	deviceID string
	observer ForwardObserver
	timeout  time.Duration
	log      zerolog.Logger
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        false,
	}
}

func NewForwarder(w MessageWriter, deviceID string, observer ForwardObserver, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		w:        w,
		deviceID: deviceID,
		observer: observer,
		timeout:  5 * time.Second,
		log:      log.With().Str("component", "kafka-forwarder").Logger(),
	}
}

type envelope struct {
	DeviceID string         `json:"deviceId"`
	Reading  domain.Reading `json:"reading"`
}

// Encode keys messages by device so one device's readings stay ordered on
// a single partition.
func (f *Forwarder) Encode(r domain.Reading) (kafka.Message, error) {
	b, err := json.Marshal(envelope{DeviceID: f.deviceID, Reading: r})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode reading %d: %w", r.ID, err)
	}
	return kafka.Message{
		Key:   []byte(f.deviceID),
		Value: b,
		Time:  r.Timestamp,
		Headers: []kafka.Header{
			{Key: "reading-id", Value: []byte(strconv.FormatInt(r.ID, 10))},
		},
	}, nil
}

// Run forwards ReadingPersisted events until in is closed or ctx is done,
// then closes the writer.
func (f *Forwarder) Run(ctx context.Context, in <-chan events.Event) {
	defer func() {
		if err := f.w.Close(); err != nil {
			f.log.Warn().Err(err).Msg("close kafka writer")
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if ev.Reading == nil {
				continue
			}
			err := f.forward(ctx, *ev.Reading)
			if f.observer != nil {
				f.observer.Forwarded("kafka", err)
			}
			if err != nil {
				f.log.Error().Err(err).Int64("reading", ev.Reading.ID).Msg("forward failed; reading skipped")
			}
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, r domain.Reading) error {
	msg, err := f.Encode(r)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.w.WriteMessages(ctx, msg)
}
