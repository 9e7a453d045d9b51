package tesla

import "das-core/utils"

type EacStatus int

const (
	EacStatusUnknown EacStatus = iota
	EacInhibited
	EacAvailable
	EacActive
	EacFault
)

var eacStatusNames = map[string]EacStatus{
	"EAC_INHIBITED": EacInhibited,
	"EAC_AVAILABLE": EacAvailable,
	"EAC_ACTIVE":    EacActive,
	"EAC_FAULT":     EacFault,
}

type EacErrorCode int

const (
	EacErrorUnknown EacErrorCode = iota
	EacErrorIdle
	EacErrorHandsOn
	EacErrorOther
)

// Only idle and hands-on matter for fault classification; every other named
// code collapses to EacErrorOther.
var eacErrorNames = map[string]EacErrorCode{
	"EAC_ERROR_IDLE":     EacErrorIdle,
	"EAC_ERROR_HANDS_ON": EacErrorHandsOn,
}

type CruiseState int

const (
	CruiseUnknown CruiseState = iota
	CruiseOff
	CruiseStandby
	CruiseEnabled
	CruiseStandstill
	CruiseOverride
	CruiseFault
	CruisePreFault
	CruisePreCancel
)

var cruiseStateNames = map[string]CruiseState{
	"OFF":        CruiseOff,
	"STANDBY":    CruiseStandby,
	"ENABLED":    CruiseEnabled,
	"STANDSTILL": CruiseStandstill,
	"OVERRIDE":   CruiseOverride,
	"FAULT":      CruiseFault,
	"PRE_FAULT":  CruisePreFault,
	"PRE_CANCEL": CruisePreCancel,
}

// Engaged reports whether the vehicle's cruise is actively controlling.
func (c CruiseState) Engaged() bool {
	switch c {
	case CruiseEnabled, CruiseStandstill, CruiseOverride, CruisePreFault, CruisePreCancel:
		return true
	}
	return false
}

type SpeedUnits int

const (
	SpeedUnitsUnknown SpeedUnits = iota
	SpeedUnitsMPH
	SpeedUnitsKPH
)

var speedUnitNames = map[string]SpeedUnits{
	"MPH": SpeedUnitsMPH,
	"KPH": SpeedUnitsKPH,
}

// ToMS converts a displayed speed to m/s. Unknown units give 0.
func (u SpeedUnits) ToMS(v float64) float64 {
	switch u {
	case SpeedUnitsKPH:
		return v * KPH_TO_MS
	case SpeedUnitsMPH:
		return v * MPH_TO_MS
	}
	return 0
}

// enumTable resolves raw signal values to a tagged enum. Raw values missing
// from the table, and names the enum does not know, give the zero (unknown)
// variant.
type enumTable[T ~int] map[int64]T

func newEnumTable[T ~int](vt utils.ValueTable, names map[string]T, other T) enumTable[T] {
	out := make(enumTable[T], len(vt))
	for raw, name := range vt {
		if v, ok := names[name]; ok {
			out[raw] = v
		} else {
			out[raw] = other
		}
	}
	return out
}

func (t enumTable[T]) lookup(raw float64) T {
	return t[int64(raw)]
}
