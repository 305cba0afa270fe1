package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/aggregate"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/cache"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
)

var day = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func seed(t *testing.T, store repository.Store, readings ...domain.Reading) {
	t.Helper()
	for i := range readings {
		require.NoError(t, store.AppendReading(context.Background(), &readings[i]))
	}
}

func newQuery(store repository.Store, c cache.Cache, now time.Time) *QueryService {
	q := NewQueryService(QueryConfig{
		Store:    store,
		Cache:    c,
		CacheTTL: time.Hour,
		Location: time.UTC,
		Interval: 5 * time.Second,
		Timeout:  time.Second,
		Log:      zerolog.Nop(),
	})
	q.now = func() time.Time { return now }
	return q
}

func TestHourlyAggregateBuckets(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store,
		domain.Reading{Timestamp: at(3, 10), GridWattage: 100, WindSpeed: 4},
		domain.Reading{Timestamp: at(3, 45), GridWattage: 300, WindSpeed: 6},
		domain.Reading{Timestamp: at(4, 5), GridWattage: 200, WindSpeed: 5},
	)
	q := newQuery(store, nil, at(12, 0))

	buckets, err := q.HourlyAggregate(context.Background(), at(3, 0), at(4, 59), nil)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.True(t, buckets[0].Start.Equal(at(3, 0)))
	assert.Equal(t, 2, buckets[0].Count)
	assert.True(t, buckets[1].Start.Equal(at(4, 0)))
	assert.Equal(t, 1, buckets[1].Count)

	avg, ok := aggregate.Value(buckets[0], aggregate.ColumnGridWattage)
	require.True(t, ok)
	assert.InDelta(t, 200.0, avg, 1e-9)

	_, err = q.HourlyAggregate(context.Background(), at(5, 0), at(4, 0), nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestHourlyAggregateCachesClosedRanges(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, domain.Reading{Timestamp: at(3, 10), GridWattage: 100})
	q := newQuery(store, cache.NewMemory(), at(12, 30))
	ctx := context.Background()

	first, err := q.HourlyAggregate(ctx, at(3, 0), at(3, 59), nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A reading landing in a closed hour is served from the cache, so it
	// stays invisible to the same query.
	seed(t, store, domain.Reading{Timestamp: at(3, 20), GridWattage: 100})
	second, err := q.HourlyAggregate(ctx, at(3, 0), at(3, 59), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second[0].Count)

	// The current hour is never cached.
	seed(t, store, domain.Reading{Timestamp: at(12, 5), GridWattage: 100})
	open, err := q.HourlyAggregate(ctx, at(12, 0), at(12, 30), nil)
	require.NoError(t, err)
	require.Len(t, open, 1)
	seed(t, store, domain.Reading{Timestamp: at(12, 10), GridWattage: 100})
	open, err = q.HourlyAggregate(ctx, at(12, 0), at(12, 30), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, open[0].Count)
}

func TestTodaySummary(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store,
		domain.Reading{Timestamp: day.Add(-time.Hour), GridWattage: 5000, TurbineWattage: 5000},
		domain.Reading{Timestamp: at(9, 0), GridWattage: 1000, TurbineWattage: 200},
		domain.Reading{Timestamp: at(9, 30), GridWattage: 1000, TurbineWattage: 400},
	)
	q := newQuery(store, nil, at(10, 0))

	totals, err := q.TodaySummary(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2000.0/1000*5/3600, totals.GridKwh, 1e-12)
	assert.InDelta(t, 600.0/1000*5/3600, totals.TurbineKwh, 1e-12)
}

func TestLatestWithTotals(t *testing.T) {
	store := repository.NewMemoryStore()
	q := newQuery(store, nil, at(10, 0))
	ctx := context.Background()

	empty, err := q.LatestWithTotals(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty.Reading)
	assert.Zero(t, empty.GridKwh)

	seed(t, store,
		domain.Reading{Timestamp: at(1, 0), GridWattage: 720, TurbineWattage: 360},
		domain.Reading{Timestamp: at(2, 0), GridWattage: 720, TurbineWattage: 360},
	)
	snap, err := q.LatestWithTotals(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Reading)
	assert.True(t, snap.Reading.Timestamp.Equal(at(2, 0)))
	assert.InDelta(t, 1440.0/1000*5/3600, snap.GridKwh, 1e-12)
	assert.InDelta(t, 720.0/1000*5/3600, snap.TurbineKwh, 1e-12)
}

func TestNotifications(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := at(10, 0)
	for _, a := range []domain.Alert{
		{ID: "a", Kind: domain.AlertOverheat, Timestamp: now.Add(-3 * time.Hour)},
		{ID: "b", Kind: domain.AlertOverheat, Timestamp: now.Add(-20 * time.Minute)},
		{ID: "c", Kind: domain.AlertHighWind, Timestamp: now.Add(-5 * time.Minute)},
	} {
		a := a
		require.NoError(t, store.AppendAlert(ctx, &a))
	}
	q := newQuery(store, nil, now)

	latest, err := q.LatestAlert(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "c", latest.ID)

	recent, err := q.RecentAlerts(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	summary, err := q.AlertSummary(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, map[domain.AlertKind]int{
		domain.AlertOverheat: 1,
		domain.AlertHighWind: 1,
		domain.AlertLowRPM:   0,
	}, summary)

	n, err := q.CountUnread(ctx, domain.AlertOverheat)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, q.MarkAllRead(ctx, domain.AlertOverheat))
	n, err = q.CountUnread(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, q.ClearAlerts(ctx))
	latest, err = q.LatestAlert(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestQueriesSurfaceStoreUnavailable(t *testing.T) {
	q := newQuery(repository.NewMemoryStore(), nil, at(10, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.History(ctx, at(0, 0), at(1, 0))
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	_, err = q.HourlyAggregate(ctx, at(0, 0), at(1, 0), nil)
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	_, err = q.LatestWithTotals(ctx)
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	_, err = q.CountUnread(ctx, "")
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}
