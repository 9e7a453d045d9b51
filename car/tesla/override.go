package tesla

import (
	"log/slog"
	"math"

	"das-core/car"
)

// OverrideDetector decides whether the driver is steering over the request.
// With Hysteresis set, an override holds while the driver keeps the wheel
// away from the request, for up to OverrideHandsOffTimeout without hands-on
// force. Without it, only a hands-on fault level counts.
type OverrideDetector struct {
	log        *slog.Logger
	Hysteresis bool
}

func NewOverrideDetector(log *slog.Logger, hysteresis bool) *OverrideDetector {
	return &OverrideDetector{log: log, Hysteresis: hysteresis}
}

// Update stores and returns the override flag for this cycle. The translator
// reads it on the next cycle.
func (d *OverrideDetector) Update(latActive bool, targetAngleDeg float64, cs *car.VehicleState, st *car.ControlCycleState, nowNanos int64) bool {
	e := &st.Engagement
	prev := e.Override

	if st.HandsOnLevel > 0 {
		e.LastHandsOnNanos = nowNanos
	}

	switch {
	case !latActive:
		e.Override = false
	case st.HandsOnLevel >= HandsOnFaultLevel:
		e.Override = true
	case !d.Hysteresis:
		e.Override = false
	default:
		handsOff := nowNanos - e.LastHandsOnNanos
		e.Override = e.Override &&
			math.Abs(targetAngleDeg-cs.SteeringAngleDeg) > ContinuedOverrideAngle &&
			!cs.Standstill &&
			handsOff < int64(OverrideHandsOffTimeout)
	}

	if e.Override != prev {
		d.log.Debug("steering override", "override", e.Override, "hands_on", st.HandsOnLevel)
	}
	return e.Override
}
