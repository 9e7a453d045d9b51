package car

import "math"

// Gain of the 2-state speed filter for DT_CTRL, solved offline from
// Q = diag(10, 100), R = 1e3.
var speedKFGain = [2]float64{0.12287673, 0.29666309}

const speedKFResetError = 2.0 // m/s

// SpeedKF estimates speed and acceleration from raw wheel speed. The state
// starts at rest; a sample more than speedKFResetError away resets it.
type SpeedKF struct {
	x [2]float64
}

// Update feeds one raw speed sample and returns (vEgo, aEgo).
func (kf *SpeedKF) Update(vEgoRaw float64) (float64, float64) {
	if math.Abs(vEgoRaw-kf.x[0]) > speedKFResetError {
		kf.x = [2]float64{vEgoRaw, 0}
	}

	// predict with A = [[1, dt], [0, 1]], correct with C = [1, 0]
	v := kf.x[0] + DT_CTRL*kf.x[1]
	a := kf.x[1]
	innovation := vEgoRaw - v
	kf.x[0] = v + speedKFGain[0]*innovation
	kf.x[1] = a + speedKFGain[1]*innovation
	return kf.x[0], kf.x[1]
}

// SteeringPressedFilter debounces a raw torque-over-threshold flag.
type SteeringPressedFilter struct {
	count int
}

// Update returns true once pressed has held for more than minCount cycles
// (net of released cycles).
func (f *SteeringPressedFilter) Update(pressed bool, minCount int) bool {
	if pressed {
		f.count++
	} else {
		f.count--
	}
	if f.count < 0 {
		f.count = 0
	}
	if f.count > 2*minCount {
		f.count = 2 * minCount
	}
	return f.count > minCount
}
