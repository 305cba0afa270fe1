package domain

import "time"

type TurbineStatus string

const (
	TurbineOn  TurbineStatus = "ON"
	TurbineOff TurbineStatus = "OFF"
)

// Reading is one telemetry sample from the device together with the values
// derived from it at ingestion. It is never modified after it is persisted.
type Reading struct {
	ID                 int64         `db:"id" json:"id"`
	Timestamp          time.Time     `db:"timestamp" json:"timestamp"`
	VoltageAC          float64       `db:"voltage_ac" json:"voltageAC"`
	VoltageDC          float64       `db:"voltage_dc" json:"voltageDC"`
	CurrentDC          float64       `db:"current_dc" json:"currentDC"`
	CurrentAC          float64       `db:"current_ac" json:"currentAC"`
	WindSpeed          float64       `db:"wind_speed" json:"windSpeed"`
	RPM                *float64      `db:"rpm" json:"rpm,omitempty"`
	BatteryTemperature float64       `db:"battery_temperature" json:"batteryTemperature"`
	Humidity           float64       `db:"humidity" json:"humidity"`
	TurbineStatus      TurbineStatus `db:"turbine_status" json:"windTurbineStatus"`
	GridWattage        float64       `db:"grid_wattage" json:"gridWattage"`
	TurbineWattage     float64       `db:"turbine_wattage" json:"turbineWattage"`
	BatterySoC         float64       `db:"battery_soc" json:"batterySoc"`
}

type AlertKind string

const (
	AlertOverheat AlertKind = "OVERHEAT"
	AlertHighWind AlertKind = "HIGH_WIND"
	AlertLowRPM   AlertKind = "LOW_RPM"
)

// KnownAlertKinds lists every kind the evaluator can raise.
var KnownAlertKinds = []AlertKind{AlertOverheat, AlertHighWind, AlertLowRPM}

// Alert is a raised condition. Only IsRead ever changes after creation.
type Alert struct {
	ID        string    `db:"id" json:"id"`
	Kind      AlertKind `db:"kind" json:"type"`
	Message   string    `db:"message" json:"message"`
	Advice    string    `db:"advice" json:"advice"`
	Value     float64   `db:"value" json:"value"`
	IsRead    bool      `db:"is_read" json:"isRead"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// HourlyBucket collapses one calendar hour of readings into sums. Buckets
// only exist for hours that received at least one reading.
type HourlyBucket struct {
	Start          time.Time `json:"timestamp"`
	Count          int       `json:"count"`
	GridWattSum    float64   `json:"gridWattSum"`
	TurbineWattSum float64   `json:"turbineWattSum"`
	VoltageACSum   float64   `json:"voltageACSum"`
	CurrentACSum   float64   `json:"currentACSum"`
	WindSpeedSum   float64   `json:"windSpeedSum"`
	BatteryTempSum float64   `json:"batteryTempSum"`
	RPMSum         float64   `json:"rpmSum"`
	RPMCount       int       `json:"rpmCount"`
	GridKwh        float64   `json:"gridKwh"`
	TurbineKwh     float64   `json:"turbineKwh"`
	// Columns lists the measured columns summed into this bucket.
	Columns        []string  `json:"columns,omitempty"`
}

type EnergyTotals struct {
	GridKwh    float64 `json:"totalGridKwh"`
	TurbineKwh float64 `json:"totalTurbineKwh"`
}

// LatestSnapshot is the most recent reading plus all-time energy totals.
// Reading is nil when nothing has been ingested yet.
type LatestSnapshot struct {
	Reading *Reading `json:"reading"`
	EnergyTotals
}
