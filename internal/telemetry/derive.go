package telemetry

import "github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"

// TurbineOnCurrent is the DC current above which the turbine counts as running.
const TurbineOnCurrent = 0.1

// Derive fills the turbine status and the grid and turbine wattage of r.
func Derive(r *domain.Reading) {
	r.TurbineStatus = domain.TurbineOff
	if r.CurrentDC > TurbineOnCurrent {
		r.TurbineStatus = domain.TurbineOn
	}
	r.GridWattage = r.VoltageAC * r.CurrentAC
	r.TurbineWattage = r.VoltageDC * r.CurrentDC
}
