package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus(zerolog.Nop())
	s1 := b.Subscribe(ReadingPersisted, 4)
	s2 := b.Subscribe(ReadingPersisted, 4)
	alerts := b.Subscribe(AlertRaised, 4)

	b.PublishReading(domain.Reading{ID: 7})

	for _, ch := range []<-chan Event{s1, s2} {
		ev := <-ch
		require.NotNil(t, ev.Reading)
		assert.Equal(t, int64(7), ev.Reading.ID)
	}
	assert.Len(t, alerts, 0)
}

func TestBusDropsWhenFull(t *testing.T) {
	b := NewBus(zerolog.Nop())
	ch := b.Subscribe(AlertRaised, 1)

	b.PublishAlert(domain.Alert{ID: "a"})
	b.PublishAlert(domain.Alert{ID: "b"})

	ev := <-ch
	assert.Equal(t, "a", ev.Alert.ID)
	assert.Len(t, ch, 0)
}

func TestBusClose(t *testing.T) {
	b := NewBus(zerolog.Nop())
	ch := b.Subscribe(ReadingPersisted, 1)
	b.Close()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	b.PublishReading(domain.Reading{})
	late := b.Subscribe(ReadingPersisted, 1)
	_, ok = <-late
	assert.False(t, ok)
}
