package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AlertsBetween(ctx context.Context, kind domain.AlertKind, start, end time.Time) ([]domain.Alert, error) {
	args := m.Called(ctx, kind, start, end)
	alerts, _ := args.Get(0).([]domain.Alert)
	return alerts, args.Error(1)
}

func (m *mockStore) AppendAlert(ctx context.Context, a *domain.Alert) error {
	return m.Called(ctx, a).Error(0)
}

type countingObserver struct {
	raised     map[domain.AlertKind]int
	suppressed map[domain.AlertKind]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{raised: map[domain.AlertKind]int{}, suppressed: map[domain.AlertKind]int{}}
}

func (o *countingObserver) AlertRaised(k domain.AlertKind)     { o.raised[k]++ }
func (o *countingObserver) AlertSuppressed(k domain.AlertKind) { o.suppressed[k]++ }

var now = time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

func hot(ts time.Time) domain.Reading {
	return domain.Reading{Timestamp: ts, BatteryTemperature: 60, WindSpeed: 5}
}

func TestOverheatDedupWindow(t *testing.T) {
	tests := []struct {
		name      string
		priorAge  time.Duration
		wantAlert bool
	}{
		{name: "prior alert 3 minutes ago", priorAge: 3 * time.Minute, wantAlert: false},
		{name: "prior alert exactly at window edge", priorAge: 10 * time.Minute, wantAlert: false},
		{name: "prior alert 11 minutes ago", priorAge: 11 * time.Minute, wantAlert: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := repository.NewMemoryStore()
			require.NoError(t, store.AppendAlert(ctx, &domain.Alert{
				ID: "prior", Kind: domain.AlertOverheat, Value: 55, Timestamp: now.Add(-tt.priorAge),
			}))
			obs := newCountingObserver()
			e := NewEvaluator(store, DefaultRules(false), obs, zerolog.Nop())

			raised, err := e.Evaluate(ctx, hot(now))
			require.NoError(t, err)

			all, err := store.AlertsBetween(ctx, domain.AlertOverheat, now.Add(-time.Hour), now)
			require.NoError(t, err)
			if tt.wantAlert {
				require.Len(t, raised, 1)
				assert.Equal(t, domain.AlertOverheat, raised[0].Kind)
				assert.Equal(t, 60.0, raised[0].Value)
				assert.False(t, raised[0].IsRead)
				assert.Equal(t, now, raised[0].Timestamp)
				assert.Len(t, all, 2)
				assert.Equal(t, 1, obs.raised[domain.AlertOverheat])
			} else {
				assert.Empty(t, raised)
				assert.Len(t, all, 1)
				assert.Equal(t, 1, obs.suppressed[domain.AlertOverheat])
			}
		})
	}
}

func TestEvaluateReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	e := NewEvaluator(store, DefaultRules(true), nil, zerolog.Nop())

	rpm := 120.0
	r := domain.Reading{Timestamp: now, BatteryTemperature: 58, WindSpeed: 30, RPM: &rpm}

	first, err := e.Evaluate(ctx, r)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := e.Evaluate(ctx, r)
	require.NoError(t, err)
	assert.Empty(t, second)

	n, err := store.CountUnread(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDedupCoversLaterAlert(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.AppendAlert(ctx, &domain.Alert{
		ID: "later", Kind: domain.AlertOverheat, Value: 58, Timestamp: now.Add(2 * time.Minute),
	}))
	obs := newCountingObserver()
	e := NewEvaluator(store, DefaultRules(false), obs, zerolog.Nop())

	raised, err := e.Evaluate(ctx, hot(now))
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Equal(t, 1, obs.suppressed[domain.AlertOverheat])
}

func TestRules(t *testing.T) {
	rpm := func(v float64) *float64 { return &v }
	tests := []struct {
		name   string
		lowRPM bool
		in     domain.Reading
		kinds  []domain.AlertKind
	}{
		{name: "calm", in: domain.Reading{BatteryTemperature: 30, WindSpeed: 6}},
		{name: "overheat at threshold", in: domain.Reading{BatteryTemperature: 50}, kinds: []domain.AlertKind{domain.AlertOverheat}},
		{name: "just below overheat", in: domain.Reading{BatteryTemperature: 49.9}},
		{name: "high wind at threshold", in: domain.Reading{WindSpeed: 25}, kinds: []domain.AlertKind{domain.AlertHighWind}},
		{name: "overheat and wind", in: domain.Reading{BatteryTemperature: 51, WindSpeed: 26}, kinds: []domain.AlertKind{domain.AlertOverheat, domain.AlertHighWind}},
		{name: "low rpm disabled", in: domain.Reading{WindSpeed: 8, RPM: rpm(100)}},
		{name: "low rpm", lowRPM: true, in: domain.Reading{WindSpeed: 8, RPM: rpm(100)}, kinds: []domain.AlertKind{domain.AlertLowRPM}},
		{name: "low rpm in calm air", lowRPM: true, in: domain.Reading{WindSpeed: 4, RPM: rpm(100)}},
		{name: "rpm fine", lowRPM: true, in: domain.Reading{WindSpeed: 8, RPM: rpm(300)}},
		{name: "no rpm sensor", lowRPM: true, in: domain.Reading{WindSpeed: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(repository.NewMemoryStore(), DefaultRules(tt.lowRPM), nil, zerolog.Nop())
			tt.in.Timestamp = now
			raised, err := e.Evaluate(context.Background(), tt.in)
			require.NoError(t, err)
			var kinds []domain.AlertKind
			for _, a := range raised {
				kinds = append(kinds, a.Kind)
				assert.NotEmpty(t, a.ID)
				assert.NotEmpty(t, a.Message)
				assert.NotEmpty(t, a.Advice)
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}
}

func TestEvaluateStoreFailures(t *testing.T) {
	ctx := context.Background()
	down := errors.Join(repository.ErrUnavailable, errors.New("connection refused"))

	t.Run("lookup failure skips rule but not others", func(t *testing.T) {
		m := &mockStore{}
		m.On("AlertsBetween", ctx, domain.AlertOverheat, mock.Anything, mock.Anything).Return(nil, down)
		m.On("AlertsBetween", ctx, domain.AlertHighWind, mock.Anything, mock.Anything).Return([]domain.Alert{}, nil)
		m.On("AppendAlert", ctx, mock.MatchedBy(func(a *domain.Alert) bool { return a.Kind == domain.AlertHighWind })).Return(nil)

		e := NewEvaluator(m, DefaultRules(false), nil, zerolog.Nop())
		raised, err := e.Evaluate(ctx, domain.Reading{Timestamp: now, BatteryTemperature: 70, WindSpeed: 30})

		assert.ErrorIs(t, err, repository.ErrUnavailable)
		require.Len(t, raised, 1)
		assert.Equal(t, domain.AlertHighWind, raised[0].Kind)
		m.AssertExpectations(t)
	})

	t.Run("append failure is reported", func(t *testing.T) {
		m := &mockStore{}
		m.On("AlertsBetween", ctx, domain.AlertOverheat, now.Add(-10*time.Minute), openEnd).Return([]domain.Alert{}, nil)
		m.On("AppendAlert", ctx, mock.Anything).Return(down)

		e := NewEvaluator(m, DefaultRules(false), nil, zerolog.Nop())
		raised, err := e.Evaluate(ctx, hot(now))

		assert.ErrorIs(t, err, repository.ErrUnavailable)
		assert.Empty(t, raised)
		m.AssertExpectations(t)
	})
}
