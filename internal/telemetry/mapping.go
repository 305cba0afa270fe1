package telemetry

import (
	"errors"
	"fmt"
)

// Field names the physical quantities a device payload carries.
type Field string

const (
	FieldVoltageAC   Field = "voltageAC"
	FieldVoltageDC   Field = "voltageDC"
	FieldCurrentDC   Field = "currentDC"
	FieldCurrentAC   Field = "currentAC"
	FieldWindSpeed   Field = "windSpeed"
	FieldRPM         Field = "rpm"
	FieldBatteryTemp Field = "batteryTemperature"
	FieldHumidity    Field = "humidity"
)

// FieldSpec places one Field in both encodings: Index is its position in the
// comma separated payload, Key its name in the JSON object.
type FieldSpec struct {
	Field Field
	Index int
	Key   string
}

// FieldMapping is the firmware contract for one payload layout. Changing the
// device firmware means adding a new version here, not touching the parser.
type FieldMapping struct {
	Version      string
	Fields       []FieldSpec
	TimestampKey string
}

// MinFields is the number of comma separated values a payload must carry.
func (m FieldMapping) MinFields() int {
	n := 0
	for _, f := range m.Fields {
		if f.Index+1 > n {
			n = f.Index + 1
		}
	}
	return n
}

// Has reports whether the mapping carries the given field.
func (m FieldMapping) Has(field Field) bool {
	for _, f := range m.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

var ErrUnknownMapping = errors.New("unknown field mapping version")

var mappings = map[string]FieldMapping{
	// 7-value firmware, no rotor sensor.
	"v1": {
		Version: "v1",
		Fields: []FieldSpec{
			{FieldVoltageAC, 0, "tegangan_ac"},
			{FieldVoltageDC, 1, "tegangan_dc"},
			{FieldCurrentDC, 2, "arus_dc"},
			{FieldCurrentAC, 3, "arus_ac"},
			{FieldWindSpeed, 4, "angin"},
			{FieldBatteryTemp, 5, "suhu"},
			{FieldHumidity, 6, "kelembaban"},
		},
		TimestampKey: "timestamp",
	},
	// 8-value firmware with the rotor RPM sensor between wind and temperature.
	"v2-rpm": {
		Version: "v2-rpm",
		Fields: []FieldSpec{
			{FieldVoltageAC, 0, "tegangan_ac"},
			{FieldVoltageDC, 1, "tegangan_dc"},
			{FieldCurrentDC, 2, "arus_dc"},
			{FieldCurrentAC, 3, "arus_ac"},
			{FieldWindSpeed, 4, "angin"},
			{FieldRPM, 5, "rpm"},
			{FieldBatteryTemp, 6, "suhu"},
			{FieldHumidity, 7, "kelembaban"},
		},
		TimestampKey: "timestamp",
	},
}

// Mapping returns the registered mapping for version.
func Mapping(version string) (FieldMapping, error) {
	m, ok := mappings[version]
	if !ok {
		return FieldMapping{}, fmt.Errorf("%w: %q", ErrUnknownMapping, version)
	}
	return m, nil
}
