package alert

import (
	"fmt"
	"time"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

const (
	OverheatTemperature = 50.0  // °C
	HighWindSpeed       = 25.0  // m/s
	LowRPMThreshold     = 300.0 // rotor rpm
	LowRPMMinWind       = 4.0   // m/s, below this a slow rotor is expected
)

// Rule is one threshold check. Check returns the triggering value when the
// reading breaches the rule.
type Rule struct {
	Kind   domain.AlertKind
	Window time.Duration
	Check  func(r domain.Reading) (value float64, fired bool)
	// Describe builds the message and advice for a fired rule.
	Describe func(r domain.Reading) (message, advice string)
}

func OverheatRule() Rule {
	return Rule{
		Kind:   domain.AlertOverheat,
		Window: 10 * time.Minute,
		Check: func(r domain.Reading) (float64, bool) {
			return r.BatteryTemperature, r.BatteryTemperature >= OverheatTemperature
		},
		Describe: func(r domain.Reading) (string, string) {
			return fmt.Sprintf("Battery temperature %.1f°C!", r.BatteryTemperature),
				"Check the battery cooling system immediately."
		},
	}
}

func HighWindRule() Rule {
	return Rule{
		Kind:   domain.AlertHighWind,
		Window: 5 * time.Minute,
		Check: func(r domain.Reading) (float64, bool) {
			return r.WindSpeed, r.WindSpeed >= HighWindSpeed
		},
		Describe: func(r domain.Reading) (string, string) {
			return fmt.Sprintf("High wind warning: %.1f m/s! Risk of turbine damage.", r.WindSpeed),
				"Engage the emergency brake or secure the turbine."
		},
	}
}

// LowRPMRule only fires for readings that carry a rotor speed.
func LowRPMRule() Rule {
	return Rule{
		Kind:   domain.AlertLowRPM,
		Window: 20 * time.Minute,
		Check: func(r domain.Reading) (float64, bool) {
			if r.RPM == nil {
				return 0, false
			}
			return *r.RPM, *r.RPM < LowRPMThreshold && r.WindSpeed > LowRPMMinWind
		},
		Describe: func(r domain.Reading) (string, string) {
			return fmt.Sprintf("Low performance: %.0f RPM at wind %.1f m/s.", *r.RPM, r.WindSpeed),
				"Inspect the turbine blades and mechanical drive."
		},
	}
}

// DefaultRules returns the rule set in evaluation order.
func DefaultRules(lowRPM bool) []Rule {
	rules := []Rule{OverheatRule(), HighWindRule()}
	if lowRPM {
		rules = append(rules, LowRPMRule())
	}
	return rules
}
