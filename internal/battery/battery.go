// Package battery estimates the battery state of charge from turbine output.
//
// Two strategies exist. Integrated accumulates real turbine energy over the
// sampling interval and is the default. RandomPlaceholder reproduces a legacy
// simulation that reported a random charge level; it is deprecated and only
// kept for demos and tests. Which one a production device should report is
// still an open question, so the choice is explicit configuration.
package battery

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type Strategy string

const (
	StrategyIntegrated Strategy = "integrated"
	// Deprecated: reports a random level, not a measurement.
	StrategyRandomPlaceholder Strategy = "random_placeholder"
)

var ErrUnknownStrategy = errors.New("unknown battery strategy")

// Model is the running battery estimate. Apply folds in one reading's turbine
// output and returns the resulting state of charge in percent, always in [0,100].
type Model interface {
	Apply(turbineWattage float64, interval time.Duration) float64
	StoredWh() float64
	CapacityWh() float64
}

type Config struct {
	Strategy        Strategy
	CapacityWh      float64
	InitialFraction float64
	// LoadWatts is a constant draw subtracted from turbine input.
	LoadWatts float64
}

func New(cfg Config) (Model, error) {
	if cfg.CapacityWh <= 0 {
		return nil, fmt.Errorf("battery capacity must be positive, got %v", cfg.CapacityWh)
	}
	switch cfg.Strategy {
	case StrategyIntegrated, "":
		return NewIntegrated(cfg.CapacityWh, cfg.InitialFraction, cfg.LoadWatts), nil
	case StrategyRandomPlaceholder:
		return NewRandomPlaceholder(cfg.CapacityWh, rand.NewSource(time.Now().UnixNano())), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}

// Integrated keeps the stored energy in watt-hours, clamped to [0, capacity].
type Integrated struct {
	mu         sync.Mutex
	capacityWh float64
	storedWh   float64
	loadWatts  float64
}

func NewIntegrated(capacityWh, initialFraction, loadWatts float64) *Integrated {
	return &Integrated{
		capacityWh: capacityWh,
		storedWh:   clamp(capacityWh*initialFraction, 0, capacityWh),
		loadWatts:  loadWatts,
	}
}

func (b *Integrated) Apply(turbineWattage float64, interval time.Duration) float64 {
	delta := (turbineWattage - b.loadWatts) * interval.Seconds() / 3600

	b.mu.Lock()
	b.storedWh = clamp(b.storedWh+delta, 0, b.capacityWh)
	stored := b.storedWh
	b.mu.Unlock()

	return 100 * stored / b.capacityWh
}

func (b *Integrated) StoredWh() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storedWh
}

func (b *Integrated) CapacityWh() float64 { return b.capacityWh }

// RandomPlaceholder ignores its input and reports a whole percentage drawn
// uniformly from [20,100].
//
// Deprecated: simulation only.
type RandomPlaceholder struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	capacityWh float64
	lastSoC    float64
}

func NewRandomPlaceholder(capacityWh float64, src rand.Source) *RandomPlaceholder {
	return &RandomPlaceholder{rnd: rand.New(src), capacityWh: capacityWh, lastSoC: 50}
}

func (b *RandomPlaceholder) Apply(float64, time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSoC = float64(20 + b.rnd.Intn(81))
	return b.lastSoC
}

func (b *RandomPlaceholder) StoredWh() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacityWh * b.lastSoC / 100
}

func (b *RandomPlaceholder) CapacityWh() float64 { return b.capacityWh }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
