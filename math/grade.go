package math

import (
	m "math"

	ms "evstudy.dev/zmap/settings"
)

// GradePercent is 100 * rise / run. It is undefined for a zero or negative run
// and for non finite inputs.
func GradePercent(rise, run float64) (float64, bool) {
	if run <= 0 || m.IsNaN(rise) || m.IsNaN(run) || m.IsInf(rise, 0) || m.IsInf(run, 0) {
		return 0, false
	}
	return 100 * rise / run, true
}

// GradeAngle is the slope angle in degrees for the given rise over run.
func GradeAngle(rise, run float64) float64 {
	return m.Atan2(rise, run) * ms.TO_DEGREES
}
