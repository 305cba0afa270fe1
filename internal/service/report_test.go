package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/aggregate"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
)

type fakeUploader struct {
	key         string
	data        []byte
	contentType string
	err         error
}

func (u *fakeUploader) UploadReport(_ context.Context, key string, data []byte, contentType string) (string, error) {
	u.key, u.data, u.contentType = key, data, contentType
	if u.err != nil {
		return "", u.err
	}
	return "https://reports.example/" + key, nil
}

func (u *fakeUploader) ListReports(_ context.Context, prefix string) ([]string, error) {
	if u.key == "" || !strings.HasPrefix(u.key, prefix) {
		return nil, nil
	}
	return []string{u.key}, nil
}

func reportFixture(t *testing.T, up Uploader) *ReportService {
	store := repository.NewMemoryStore()
	seed(t, store,
		domain.Reading{Timestamp: at(3, 10), GridWattage: 3600, TurbineWattage: 720, WindSpeed: 4},
		domain.Reading{Timestamp: at(3, 40), GridWattage: 3600, TurbineWattage: 720, WindSpeed: 6},
		domain.Reading{Timestamp: at(5, 0), GridWattage: 7200, TurbineWattage: 0, WindSpeed: 2},
	)
	return NewReportService(newQuery(store, nil, at(12, 0)), up, zerolog.Nop())
}

func TestReportBuild(t *testing.T) {
	s := reportFixture(t, nil)
	cols := []aggregate.Column{aggregate.ColumnEnergyKwh, aggregate.ColumnWindSpeed}

	rep, err := s.Build(context.Background(), at(0, 0), at(11, 0), cols)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, cols, rep.Columns)

	// 3600 W for 5 s is 5 Wh.
	assert.InDelta(t, 0.020, rep.Totals.GridKwh, 1e-9)
	assert.InDelta(t, 0.002, rep.Totals.TurbineKwh, 1e-9)
	assert.InDelta(t, 0.000022, rep.TotalMWh, 1e-12)

	wind := rep.Rows[0].Values[aggregate.ColumnWindSpeed]
	require.NotNil(t, wind)
	assert.InDelta(t, 5.0, *wind, 1e-9)
	_, included := rep.Rows[0].Values[aggregate.ColumnGridWattage]
	assert.False(t, included)

	_, err = s.Build(context.Background(), at(20, 0), at(21, 0), cols)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReportCSV(t *testing.T) {
	s := reportFixture(t, nil)
	rep, err := s.Build(context.Background(), at(0, 0), at(11, 0), []aggregate.Column{aggregate.ColumnWindSpeed, aggregate.ColumnRPM})
	require.NoError(t, err)

	out, err := s.CSV(rep)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Time,Wind Speed (m/s),RPM", lines[0])
	assert.Equal(t, "2025-03-01 03:00,5.000,", lines[1])
	assert.Equal(t, "2025-03-01 05:00,2.000,", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "Total grid (kWh),0.020"))
}

func TestReportExport(t *testing.T) {
	t.Run("uploads csv", func(t *testing.T) {
		up := &fakeUploader{}
		url, err := reportFixture(t, up).Export(context.Background(), at(0, 0), at(11, 0), nil)
		require.NoError(t, err)
		assert.Equal(t, "reports/hourly-20250301T0000-20250301T1100.csv", up.key)
		assert.Equal(t, "text/csv", up.contentType)
		assert.Equal(t, "https://reports.example/"+up.key, url)
		assert.Contains(t, string(up.data), "Energy (kWh)")
	})
	t.Run("lists exports", func(t *testing.T) {
		up := &fakeUploader{}
		s := reportFixture(t, up)
		_, err := s.Export(context.Background(), at(0, 0), at(11, 0), nil)
		require.NoError(t, err)
		keys, err := s.Exports(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{up.key}, keys)
	})
	t.Run("upload failure", func(t *testing.T) {
		up := &fakeUploader{err: errors.New("access denied")}
		_, err := reportFixture(t, up).Export(context.Background(), at(0, 0), at(11, 0), nil)
		assert.ErrorContains(t, err, "access denied")
	})
	t.Run("empty range", func(t *testing.T) {
		up := &fakeUploader{}
		_, err := reportFixture(t, up).Export(context.Background(), at(20, 0), at(21, 0), nil)
		assert.ErrorIs(t, err, ErrNoData)
		assert.Empty(t, up.key)
	})
	t.Run("no uploader", func(t *testing.T) {
		_, err := reportFixture(t, nil).Export(context.Background(), at(0, 0), at(11, 0), nil)
		assert.Error(t, err)
	})
}
