package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/aggregate"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/cache"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
)

var (
	ErrInvalidRange = errors.New("start must not be after end")
	ErrNoData       = errors.New("no readings in range")
)

// QueryObserver records query latency. *metrics.Metrics implements it.
type QueryObserver interface {
	ObserveQuery(query string, start time.Time)
}

type QueryConfig struct {
	Store    repository.Store
	Cache    cache.Cache // optional
	CacheTTL time.Duration
	Location *time.Location
	Interval time.Duration
	Timeout  time.Duration
	Observer QueryObserver
	Log      zerolog.Logger
}

// QueryService answers the read side: history, hourly aggregates, energy
// totals and notifications. Store failures come back wrapping
// repository.ErrUnavailable and never as partial results.
type QueryService struct {
	store    repository.Store
	cache    cache.Cache
	cacheTTL time.Duration
	loc      *time.Location
	interval time.Duration
	timeout  time.Duration
	observer QueryObserver
	log      zerolog.Logger
	now      func() time.Time
}

func NewQueryService(cfg QueryConfig) *QueryService {
	q := &QueryService{
		store:    cfg.Store,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		loc:      cfg.Location,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		observer: cfg.Observer,
		log:      cfg.Log.With().Str("component", "query").Logger(),
		now:      time.Now,
	}
	if q.loc == nil {
		q.loc = time.Local
	}
	if q.interval <= 0 {
		q.interval = aggregate.DefaultInterval
	}
	return q
}

func (q *QueryService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, q.timeout)
}

func (q *QueryService) observe(name string) func() {
	start := time.Now()
	return func() {
		if q.observer != nil {
			q.observer.ObserveQuery(name, start)
		}
	}
}

// Location is the zone hour buckets and "today" are computed in.
func (q *QueryService) Location() *time.Location { return q.loc }

// History returns readings in [start, end], oldest first.
func (q *QueryService) History(ctx context.Context, start, end time.Time) ([]domain.Reading, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	defer q.observe("history")()
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.store.ReadingsBetween(ctx, start, end)
}

// HourlyAggregate buckets [start, end] by calendar hour. A range that ends
// before the current hour began cannot change any more, so its result is
// cached when a cache is configured.
func (q *QueryService) HourlyAggregate(ctx context.Context, start, end time.Time, cols []aggregate.Column) ([]domain.HourlyBucket, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	if len(cols) == 0 {
		cols = aggregate.AllColumns
	}
	defer q.observe("hourly")()
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	cacheable := q.cache != nil && end.Before(aggregate.HourStart(q.now(), q.loc))
	key := q.hourlyKey(start, end, cols)
	if cacheable {
		var cached []domain.HourlyBucket
		found, err := q.cache.Get(ctx, key, &cached)
		if err != nil {
			q.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		} else if found {
			return cached, nil
		}
	}

	readings, err := q.store.ReadingsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	buckets := aggregate.Hourly(readings, aggregate.Options{Columns: cols, Location: q.loc, Interval: q.interval})

	if cacheable {
		if err := q.cache.Set(ctx, key, buckets, q.cacheTTL); err != nil {
			q.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return buckets, nil
}

func (q *QueryService) hourlyKey(start, end time.Time, cols []aggregate.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = string(c)
	}
	return fmt.Sprintf("hourly:%s:%d:%d:%s:%s", q.loc, start.UnixMilli(), end.UnixMilli(), q.interval, strings.Join(names, ","))
}

// TodaySummary totals energy from local midnight until now.
func (q *QueryService) TodaySummary(ctx context.Context) (domain.EnergyTotals, error) {
	now := q.now().In(q.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, q.loc)
	buckets, err := q.HourlyAggregate(ctx, midnight, now, []aggregate.Column{aggregate.ColumnEnergyKwh})
	if err != nil {
		return domain.EnergyTotals{}, err
	}
	return aggregate.Totals(buckets), nil
}

// LatestWithTotals returns the newest reading and all-time energy totals.
func (q *QueryService) LatestWithTotals(ctx context.Context) (domain.LatestSnapshot, error) {
	defer q.observe("latest")()
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	latest, err := q.store.LatestReading(ctx)
	if err != nil {
		return domain.LatestSnapshot{}, err
	}
	grid, turbine, err := q.store.WattageSums(ctx)
	if err != nil {
		return domain.LatestSnapshot{}, err
	}
	return domain.LatestSnapshot{
		Reading: latest,
		EnergyTotals: domain.EnergyTotals{
			GridKwh:    aggregate.EnergyKwh(grid, q.interval),
			TurbineKwh: aggregate.EnergyKwh(turbine, q.interval),
		},
	}, nil
}

func (q *QueryService) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.store.RecentAlerts(ctx, limit)
}

// LatestAlert returns nil when no alert was ever raised.
func (q *QueryService) LatestAlert(ctx context.Context) (*domain.Alert, error) {
	alerts, err := q.RecentAlerts(ctx, 1)
	if err != nil || len(alerts) == 0 {
		return nil, err
	}
	return &alerts[0], nil
}

func (q *QueryService) CountUnread(ctx context.Context, kind domain.AlertKind) (int, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.store.CountUnread(ctx, kind)
}

func (q *QueryService) MarkAllRead(ctx context.Context, kind domain.AlertKind) error {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.store.MarkAllRead(ctx, kind)
}

// AlertSummary counts alerts per kind raised within the last window. Every
// known kind is present in the result, zero when quiet.
func (q *QueryService) AlertSummary(ctx context.Context, window time.Duration) (map[domain.AlertKind]int, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	end := q.now()
	alerts, err := q.store.AlertsBetween(ctx, "", end.Add(-window), end)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.AlertKind]int, len(domain.KnownAlertKinds))
	for _, k := range domain.KnownAlertKinds {
		out[k] = 0
	}
	for _, a := range alerts {
		out[a.Kind]++
	}
	return out, nil
}

func (q *QueryService) ClearAlerts(ctx context.Context) error {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	if err := q.store.ClearAlerts(ctx); err != nil {
		return err
	}
	q.log.Warn().Msg("all alerts cleared")
	return nil
}
