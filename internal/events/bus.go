// Package events is the in-process fan-out between the ingestion pipeline
// and its side effects. Delivery is best effort: a subscriber whose buffer is
// full misses the event.
package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

type Topic string

const (
	ReadingPersisted Topic = "reading.persisted"
	AlertRaised      Topic = "alert.raised"
)

type Event struct {
	Topic   Topic
	Reading *domain.Reading
	Alert   *domain.Alert
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]chan Event
	closed bool
	log    zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[Topic][]chan Event),
		log:  log.With().Str("component", "event-bus").Logger(),
	}
}

// Subscribe returns a channel receiving every later event on topic. The
// channel is closed by Close.
func (b *Bus) Subscribe(topic Topic, buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish never blocks.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
			b.log.Warn().Str("topic", string(ev.Topic)).Msg("subscriber buffer full; event dropped")
		}
	}
}

func (b *Bus) PublishReading(r domain.Reading) {
	b.Publish(Event{Topic: ReadingPersisted, Reading: &r})
}

func (b *Bus) PublishAlert(a domain.Alert) {
	b.Publish(Event{Topic: AlertRaised, Alert: &a})
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
}
