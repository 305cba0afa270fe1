package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

// Store is the slice of the time-series store the evaluator needs.
type Store interface {
	AlertsBetween(ctx context.Context, kind domain.AlertKind, start, end time.Time) ([]domain.Alert, error)
	AppendAlert(ctx context.Context, a *domain.Alert) error
}

// Observer is told about every rule outcome. Metrics implement it.
type Observer interface {
	AlertRaised(kind domain.AlertKind)
	AlertSuppressed(kind domain.AlertKind)
}

// openEnd stands in for "no upper bound" on the dedup lookup. Any alert of
// the same kind at or after the window start suppresses, including one
// stamped later than an out-of-order reading.
var openEnd = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)

// Evaluator checks readings against the rules and persists at most one alert
// per kind inside each rule's dedup window. It is not safe for concurrent
// Evaluate calls: the dedup check and the insert are not atomic, so callers
// run it from a single goroutine.
type Evaluator struct {
	store    Store
	rules    []Rule
	observer Observer
	log      zerolog.Logger
	newID    func() string
}

func NewEvaluator(store Store, rules []Rule, observer Observer, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		rules:    rules,
		observer: observer,
		log:      log.With().Str("component", "alert-evaluator").Logger(),
		newID:    uuid.NewString,
	}
}

// Evaluate runs every rule against r, using r's timestamp as "now". It
// returns the alerts it created. A store failure on one rule does not stop
// the others; the failures are joined into the returned error.
func (e *Evaluator) Evaluate(ctx context.Context, r domain.Reading) ([]domain.Alert, error) {
	var (
		raised []domain.Alert
		errs   []error
	)
	for _, rule := range e.rules {
		value, fired := rule.Check(r)
		if !fired {
			continue
		}

		existing, err := e.store.AlertsBetween(ctx, rule.Kind, r.Timestamp.Add(-rule.Window), openEnd)
		if err != nil {
			errs = append(errs, fmt.Errorf("dedup lookup %s: %w", rule.Kind, err))
			continue
		}
		if len(existing) > 0 {
			if e.observer != nil {
				e.observer.AlertSuppressed(rule.Kind)
			}
			e.log.Debug().Str("kind", string(rule.Kind)).Float64("value", value).Msg("alert suppressed inside dedup window")
			continue
		}

		message, advice := rule.Describe(r)
		a := domain.Alert{
			ID:        e.newID(),
			Kind:      rule.Kind,
			Message:   message,
			Advice:    advice,
			Value:     value,
			Timestamp: r.Timestamp,
		}
		if err := e.store.AppendAlert(ctx, &a); err != nil {
			errs = append(errs, fmt.Errorf("append %s alert: %w", rule.Kind, err))
			continue
		}
		if e.observer != nil {
			e.observer.AlertRaised(rule.Kind)
		}
		e.log.Info().Str("kind", string(a.Kind)).Float64("value", a.Value).Msg(a.Message)
		raised = append(raised, a)
	}
	return raised, errors.Join(errs...)
}
