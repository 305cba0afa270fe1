// Package aggregate collapses readings into calendar-hour buckets. The same
// function feeds the dashboard chart, the history table and the report.
package aggregate

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

type Column string

const (
	ColumnEnergyKwh      Column = "energyKwh"
	ColumnGridWattage    Column = "gridWattage"
	ColumnTurbineWattage Column = "turbineWattage"
	ColumnVoltageAC      Column = "voltageAC"
	ColumnCurrentAC      Column = "currentAC"
	ColumnRPM            Column = "rpm"
	ColumnWindSpeed      Column = "windSpeed"
	ColumnBatteryTemp    Column = "batteryTemperature"
)

// AllColumns is the default column set, in report order.
var AllColumns = []Column{
	ColumnEnergyKwh, ColumnGridWattage, ColumnTurbineWattage, ColumnVoltageAC,
	ColumnCurrentAC, ColumnRPM, ColumnWindSpeed, ColumnBatteryTemp,
}

var columnLabels = map[Column]string{
	ColumnEnergyKwh:      "Energy (kWh)",
	ColumnGridWattage:    "Grid Power (W)",
	ColumnTurbineWattage: "Turbine Power (W)",
	ColumnVoltageAC:      "Voltage (V)",
	ColumnCurrentAC:      "Current (A)",
	ColumnRPM:            "RPM",
	ColumnWindSpeed:      "Wind Speed (m/s)",
	ColumnBatteryTemp:    "Battery Temp (°C)",
}

func (c Column) Label() string {
	if l, ok := columnLabels[c]; ok {
		return l
	}
	return string(c)
}

// ParseColumns reads a comma separated column list. Empty input selects AllColumns.
func ParseColumns(s string) ([]Column, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AllColumns, nil
	}
	var out []Column
	seen := map[Column]bool{}
	for _, part := range strings.Split(s, ",") {
		c := Column(strings.TrimSpace(part))
		if c == "" || c == "timestamp" {
			continue
		}
		if _, ok := columnLabels[c]; !ok {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// Options parameterize Hourly. A nil Location means time.Local; a zero
// Interval means DefaultInterval.
type Options struct {
	Columns  []Column
	Location *time.Location
	Interval time.Duration
}

// DefaultInterval is the device sampling interval.
const DefaultInterval = 5 * time.Second

// Hourly buckets readings by the calendar hour they fall in and returns the
// buckets in ascending order. Only columns listed in opts are summed; energy
// is always accumulated because totals depend on it. Each reading contributes
// wattage x interval of energy.
func Hourly(readings []domain.Reading, opts Options) []domain.HourlyBucket {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	intervalHours := interval.Hours()
	include := make(map[Column]bool, len(opts.Columns))
	names := make([]string, 0, len(opts.Columns))
	for _, c := range opts.Columns {
		if !include[c] {
			names = append(names, string(c))
		}
		include[c] = true
	}

	groups := make(map[int64]*domain.HourlyBucket)
	for _, r := range readings {
		start := HourStart(r.Timestamp, loc)
		key := start.Unix()
		b, ok := groups[key]
		if !ok {
			b = &domain.HourlyBucket{Start: start, Columns: names}
			groups[key] = b
		}
		b.Count++
		b.GridKwh += r.GridWattage / 1000 * intervalHours
		b.TurbineKwh += r.TurbineWattage / 1000 * intervalHours
		if include[ColumnGridWattage] {
			b.GridWattSum += r.GridWattage
		}
		if include[ColumnTurbineWattage] {
			b.TurbineWattSum += r.TurbineWattage
		}
		if include[ColumnVoltageAC] {
			b.VoltageACSum += r.VoltageAC
		}
		if include[ColumnCurrentAC] {
			b.CurrentACSum += r.CurrentAC
		}
		if include[ColumnWindSpeed] {
			b.WindSpeedSum += r.WindSpeed
		}
		if include[ColumnBatteryTemp] {
			b.BatteryTempSum += r.BatteryTemperature
		}
		if include[ColumnRPM] && r.RPM != nil {
			b.RPMSum += *r.RPM
			b.RPMCount++
		}
	}

	out := make([]domain.HourlyBucket, 0, len(groups))
	for _, b := range groups {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// HourStart truncates t to the top of its calendar hour in loc. The offset
// is subtracted from the instant itself so that the repeated hour at a
// daylight-saving fall-back stays two distinct hours.
func HourStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}

// Value returns the bucket's figure for c: the hourly average for measured
// columns, the combined grid and turbine energy for ColumnEnergyKwh. ok is
// false when the bucket holds no samples for c or c was not aggregated.
func Value(b domain.HourlyBucket, c Column) (v float64, ok bool) {
	if b.Count == 0 {
		return 0, false
	}
	if c != ColumnEnergyKwh && !slices.Contains(b.Columns, string(c)) {
		return 0, false
	}
	n := float64(b.Count)
	switch c {
	case ColumnEnergyKwh:
		return b.GridKwh + b.TurbineKwh, true
	case ColumnGridWattage:
		return b.GridWattSum / n, true
	case ColumnTurbineWattage:
		return b.TurbineWattSum / n, true
	case ColumnVoltageAC:
		return b.VoltageACSum / n, true
	case ColumnCurrentAC:
		return b.CurrentACSum / n, true
	case ColumnWindSpeed:
		return b.WindSpeedSum / n, true
	case ColumnBatteryTemp:
		return b.BatteryTempSum / n, true
	case ColumnRPM:
		if b.RPMCount == 0 {
			return 0, false
		}
		return b.RPMSum / float64(b.RPMCount), true
	}
	return 0, false
}

// Row is one rendered bucket. A nil value means "no data" for that column.
type Row struct {
	Timestamp time.Time           `json:"timestamp"`
	Count     int                 `json:"count"`
	Values    map[Column]*float64 `json:"values"`
}

func Rows(buckets []domain.HourlyBucket, cols []Column) []Row {
	rows := make([]Row, 0, len(buckets))
	for _, b := range buckets {
		row := Row{Timestamp: b.Start, Count: b.Count, Values: make(map[Column]*float64, len(cols))}
		for _, c := range cols {
			if v, ok := Value(b, c); ok {
				v := v
				row.Values[c] = &v
			} else {
				row.Values[c] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Totals sums the per-bucket energy.
func Totals(buckets []domain.HourlyBucket) domain.EnergyTotals {
	grid := make([]aggregator.Point, len(buckets))
	turbine := make([]aggregator.Point, len(buckets))
	for i, b := range buckets {
		grid[i] = aggregator.Point{Value: b.GridKwh, Timestamp: b.Start}
		turbine[i] = aggregator.Point{Value: b.TurbineKwh, Timestamp: b.Start}
	}
	return domain.EnergyTotals{
		GridKwh:    aggregator.Sum(grid),
		TurbineKwh: aggregator.Sum(turbine),
	}
}

// EnergyKwh converts summed instantaneous wattage into kWh for samples taken
// every interval.
func EnergyKwh(wattSum float64, interval time.Duration) float64 {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return wattSum / 1000 * interval.Hours()
}
