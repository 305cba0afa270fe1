package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/alert"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/events"
)

// AlertWorker evaluates alert rules for every persisted reading. Run it in
// exactly one goroutine.
type AlertWorker struct {
	evaluator *alert.Evaluator
	bus       *events.Bus
	timeout   time.Duration
	log       zerolog.Logger
}

func NewAlertWorker(evaluator *alert.Evaluator, bus *events.Bus, timeout time.Duration, log zerolog.Logger) *AlertWorker {
	return &AlertWorker{
		evaluator: evaluator,
		bus:       bus,
		timeout:   timeout,
		log:       log.With().Str("component", "alert-worker").Logger(),
	}
}

// Run consumes reading events until in is closed or ctx is done.
func (w *AlertWorker) Run(ctx context.Context, in <-chan events.Event) {
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
			w.handle(ctx, ev)
		}
	}
}

func (w *AlertWorker) handle(ctx context.Context, ev events.Event) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	raised, err := w.evaluator.Evaluate(ctx, *ev.Reading)
	if err != nil {
		w.log.Error().Err(err).Int64("reading", ev.Reading.ID).Msg("alert evaluation incomplete; skipped for this reading")
	}
	for _, a := range raised {
		w.bus.PublishAlert(a)
	}
}
