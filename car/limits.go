package car

import "math"

const DT_CTRL = 0.01 // s, 100 Hz control rate

// AngleRateLimit is a per-cycle angle delta table over speed breakpoints.
type AngleRateLimit struct {
	SpeedBP []float64
	AngleV  []float64
}

type AngleLimits struct {
	AngleRateLimitUp   AngleRateLimit
	AngleRateLimitDown AngleRateLimit
}

func Clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Interp linearly interpolates x over the breakpoints xp/fp, holding the end
// values outside the table.
func Interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if n == 0 || n != len(fp) {
		return 0
	}
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	for i := 1; i < n; i++ {
		if x <= xp[i] {
			span := xp[i] - xp[i-1]
			if span == 0 {
				return fp[i]
			}
			return fp[i-1] + (fp[i]-fp[i-1])*(x-xp[i-1])/span
		}
	}
	return fp[n-1]
}

// ApplyStdSteerAngleLimits bounds the change from applyAngleLast by the
// speed-dependent rate. Moving away from center uses the up table, anything
// else the down table.
func ApplyStdSteerAngleLimits(applyAngle, applyAngleLast, vEgo float64, limits AngleLimits) float64 {
	steerUp := applyAngleLast*applyAngle >= 0 && math.Abs(applyAngle) > math.Abs(applyAngleLast)
	rateLimits := limits.AngleRateLimitDown
	if steerUp {
		rateLimits = limits.AngleRateLimitUp
	}
	angleRateLim := Interp(vEgo, rateLimits.SpeedBP, rateLimits.AngleV)
	return Clip(applyAngle, applyAngleLast-angleRateLim, applyAngleLast+angleRateLim)
}
