package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/events"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { w.closed = true; return nil }

type results map[string]int

func (r results) Forwarded(sink string, err error) {
	if err != nil {
		sink += ":error"
	}
	r[sink]++
}

func TestEncode(t *testing.T) {
	f := NewForwarder(&recordingWriter{}, "panel-utama", nil, zerolog.Nop())
	ts := time.Date(2025, 3, 1, 3, 10, 0, 0, time.UTC)

	msg, err := f.Encode(domain.Reading{ID: 42, Timestamp: ts, GridWattage: 330})
	require.NoError(t, err)
	assert.Equal(t, "panel-utama", string(msg.Key))
	assert.True(t, msg.Time.Equal(ts))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "42", string(msg.Headers[0].Value))

	var env struct {
		DeviceID string         `json:"deviceId"`
		Reading  domain.Reading `json:"reading"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, "panel-utama", env.DeviceID)
	assert.Equal(t, 330.0, env.Reading.GridWattage)
}

func TestRunForwardsAndCloses(t *testing.T) {
	w := &recordingWriter{}
	res := results{}
	f := NewForwarder(w, "dev", res, zerolog.Nop())

	in := make(chan events.Event, 3)
	in <- events.Event{Topic: events.ReadingPersisted, Reading: &domain.Reading{ID: 1}}
	in <- events.Event{Topic: events.ReadingPersisted}
	in <- events.Event{Topic: events.ReadingPersisted, Reading: &domain.Reading{ID: 2}}
	close(in)
	f.Run(context.Background(), in)

	assert.Len(t, w.msgs, 2)
	assert.Equal(t, 2, res["kafka"])
	assert.True(t, w.closed)
}

func TestRunSurvivesWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	res := results{}
	f := NewForwarder(w, "dev", res, zerolog.Nop())

	in := make(chan events.Event, 2)
	in <- events.Event{Topic: events.ReadingPersisted, Reading: &domain.Reading{ID: 1}}
	in <- events.Event{Topic: events.ReadingPersisted, Reading: &domain.Reading{ID: 2}}
	close(in)
	f.Run(context.Background(), in)

	assert.Equal(t, 2, res["kafka:error"])
}
