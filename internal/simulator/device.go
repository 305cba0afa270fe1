// Package simulator produces device payloads with the same shape and daily
// wind pattern as the field hardware.
package simulator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// Sample is one simulated measurement.
type Sample struct {
	VoltageAC   float64
	VoltageDC   float64
	CurrentDC   float64
	CurrentAC   float64
	WindSpeed   float64
	RPM         float64
	Temperature float64
	Humidity    float64
}

// Device carries the slowly changing state between samples.
type Device struct {
	rng         *rand.Rand
	windSpeed   float64
	temperature float64
	humidity    float64
	// OverheatChance is the probability of a battery temperature spike.
	OverheatChance float64
}

func NewDevice(src rand.Source) *Device {
	return &Device{
		rng:            rand.New(src),
		windSpeed:      5.0,
		temperature:    30.0,
		humidity:       70.0,
		OverheatChance: 0.05,
	}
}

func (d *Device) uniform(lo, hi float64) float64 { return lo + d.rng.Float64()*(hi-lo) }

// targetWind follows the daily pattern: calm mornings, strong afternoons.
func (d *Device) targetWind(hour int) float64 {
	switch {
	case hour >= 5 && hour < 12:
		return d.uniform(3, 8)
	case hour >= 12 && hour < 18:
		return d.uniform(10, 25)
	default:
		return d.uniform(6, 15)
	}
}

// Next advances the device to now and returns the sample.
func (d *Device) Next(now time.Time) Sample {
	d.windSpeed += (d.targetWind(now.Hour()) - d.windSpeed) * 0.1
	d.temperature += d.uniform(-0.2, 0.2)

	s := Sample{
		VoltageAC: 220 + d.uniform(-1.5, 1.5),
		VoltageDC: 12 + d.windSpeed/10,
		CurrentDC: 1 + d.windSpeed/5,
		CurrentAC: 1.5 + d.uniform(-0.2, 0.2),
		WindSpeed: d.windSpeed,
		RPM:       d.windSpeed*60 + d.uniform(-20, 20),
		Humidity:  d.humidity,
	}
	if d.rng.Float64() < d.OverheatChance {
		s.Temperature = d.uniform(50.1, 60)
	} else {
		if d.temperature <= 25 || d.temperature >= 48 {
			d.temperature = 30
		}
		s.Temperature = d.temperature
	}

	if s.VoltageDC <= 12 || s.VoltageDC >= 14.8 {
		s.VoltageDC = 13.5
	}
	if s.CurrentDC <= 0 || s.CurrentDC >= 15 {
		s.CurrentDC = 5
	}
	if s.WindSpeed <= 0 || s.WindSpeed >= 40 {
		d.windSpeed, s.WindSpeed = 10, 10
	}
	return s
}

// CSV renders the sample in firmware field order. withRPM selects the
// eight field layout.
func (s Sample) CSV(withRPM bool) string {
	if withRPM {
		return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f,%.2f,%.0f,%.1f,%.1f",
			s.VoltageAC, s.VoltageDC, s.CurrentDC, s.CurrentAC, s.WindSpeed, s.RPM, s.Temperature, s.Humidity)
	}
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f,%.2f,%.1f,%.1f",
		s.VoltageAC, s.VoltageDC, s.CurrentDC, s.CurrentAC, s.WindSpeed, s.Temperature, s.Humidity)
}

// JSON renders the sample with the firmware's object keys.
func (s Sample) JSON(withRPM bool, at time.Time) ([]byte, error) {
	m := map[string]any{
		"tegangan_ac": s.VoltageAC,
		"tegangan_dc": s.VoltageDC,
		"arus_dc":     s.CurrentDC,
		"arus_ac":     s.CurrentAC,
		"angin":       s.WindSpeed,
		"suhu":        s.Temperature,
		"kelembaban":  s.Humidity,
		"timestamp":   at.UTC().Format(time.RFC3339Nano),
	}
	if withRPM {
		m["rpm"] = s.RPM
	}
	return json.Marshal(m)
}
