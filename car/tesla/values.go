package tesla

import (
	"time"

	"das-core/car"
)

// Logical buses.
const (
	BusParty          = 0
	BusVehicle        = 1
	BusAutopilotParty = 2
)

const (
	AddrSteeringControl = 0x488
	AddrDASControl      = 0x2B9
	AddrRightStalk      = 0x229
)

const (
	KPH_TO_MS = 1 / 3.6
	MS_TO_KPH = 3.6
	MPH_TO_MS = 0.44704
)

// Steering and longitudinal limits.
var AngleLimits = car.AngleLimits{
	AngleRateLimitUp:   car.AngleRateLimit{SpeedBP: []float64{0., 5., 15.}, AngleV: []float64{7.0, 1.6, .3}},
	AngleRateLimitDown: car.AngleRateLimit{SpeedBP: []float64{0., 5., 15.}, AngleV: []float64{7.0, 5.5, 0.8}},
}

const (
	JerkLimitMax = 4.9
	JerkLimitMin = -4.9

	AccelToSpeedMultiplier = 3

	TorqueToAngleMultiplierOuter = 4 // driver steering with the request
	TorqueToAngleMultiplierInner = 8 // driver steering against the request
	TorqueToAngleDeadzone        = 0.5
	TorqueToAngleClip            = 10.

	ContinuedOverrideAngle = 10.
	SteerAngleGuard        = 20. // deg around the measured angle

	HandsOnFaultLevel        = 3
	SteeringPressedTorque    = 1.0 // Nm
	SteeringPressedMinCount  = 5
	StandstillSpeed          = 0.1 // m/s
	OverrideHandsOffTimeout  = time.Second
	CruiseMismatchDebounce   = 200 * time.Millisecond
	SteerStep                = 2
	CancelStep               = 10
	AccStateCancelSilent     = 13
	DASControlCounterModulus = 8
	RightStalkCounterModulus = 16
)

// Steering control types of DAS_steeringControl.
const (
	SteerControlNone           = 0
	SteerControlAngle          = 1
	SteerControlLaneKeepAssist = 2
)

// Right stalk positions of SCCM_rightStalkStatus.
const (
	StalkIdle  = 0
	StalkUp1   = 1
	StalkUp2   = 2
	StalkDown1 = 3
	StalkDown2 = 4
)

// MessageRate is a subscribed message and its expected frequency in Hz.
type MessageRate struct {
	Name string
	Hz   int
}

// Chassis messages on the party bus.
var PartyMessages = []MessageRate{
	{"ESP_B", 50},
	{"DI_systemStatus", 100},
	{"IBST_status", 25},
	{"DI_state", 10},
	{"EPAS3S_sysStatus", 100},
	{"UI_warning", 10},
}

// Autopilot messages, read from the autopilot side of the party bus.
var CamMessages = []MessageRate{
	{"DAS_control", 25},
	{"DAS_status", 2},
}

// Body messages on the vehicle bus.
var VehicleMessages = []MessageRate{
	{"VCLEFT_switchStatus", 20},
	{"SCCM_rightStalk", 10},
	{"SCCM_steeringAngleSensor", 100},
	{"ID3F5VCFRONT_lighting", 10},
	{"UI_status2", 2}, // variable rate, minimum 2hz
}

func MessageNames(rates []MessageRate) []string {
	out := make([]string, len(rates))
	for i, r := range rates {
		out[i] = r.Name
	}
	return out
}

type signalRef struct {
	Message string
	Signal  string
}

var partySignals = []signalRef{
	{"ESP_B", "ESP_vehicleSpeed"},
	{"DI_systemStatus", "DI_accelPedalPos"},
	{"DI_systemStatus", "DI_gear"},
	{"IBST_status", "IBST_driverBrakeApply"},
	{"EPAS3S_sysStatus", "EPAS3S_handsOnLevel"},
	{"EPAS3S_sysStatus", "EPAS3S_eacStatus"},
	{"EPAS3S_sysStatus", "EPAS3S_eacErrorCode"},
	{"EPAS3S_sysStatus", "EPAS3S_internalSAS"},
	{"EPAS3S_sysStatus", "EPAS3S_torsionBarTorque"},
	{"DI_state", "DI_cruiseState"},
	{"DI_state", "DI_speedUnits"},
	{"DI_state", "DI_digitalSpeed"},
	{"UI_warning", "anyDoorOpen"},
	{"UI_warning", "buckleStatus"},
	{"DAS_status", "DAS_fusedSpeedLimit"},
	{"DAS_status", "DAS_blindSpotRearLeft"},
	{"DAS_status", "DAS_blindSpotRearRight"},
	{"DAS_control", "DAS_aebEvent"},
	{"DAS_control", "DAS_accState"},
	{"DAS_control", "DAS_controlCounter"},
}

var vehicleSignals = []signalRef{
	{"SCCM_steeringAngleSensor", "SCCM_steeringAngleSpeed"},
	{"ID3F5VCFRONT_lighting", "VCFRONT_indicatorLeftRequest"},
	{"ID3F5VCFRONT_lighting", "VCFRONT_indicatorRightRequest"},
	{"SCCM_rightStalk", "SCCM_rightStalkCounter"},
}

// Signals whose raw value is resolved through a value table.
var partyEnums = []signalRef{
	{"DI_systemStatus", "DI_gear"},
	{"DI_state", "DI_cruiseState"},
	{"DI_state", "DI_speedUnits"},
	{"EPAS3S_sysStatus", "EPAS3S_eacStatus"},
	{"EPAS3S_sysStatus", "EPAS3S_eacErrorCode"},
}

var GearMap = map[string]car.GearShifter{
	"DI_GEAR_INVALID": car.GearUnknown,
	"DI_GEAR_P":       car.GearPark,
	"DI_GEAR_R":       car.GearReverse,
	"DI_GEAR_N":       car.GearNeutral,
	"DI_GEAR_D":       car.GearDrive,
	"DI_GEAR_SNA":     car.GearUnknown,
}

// Button maps a raw signal to a logical button. MuxSignal, when set, must
// read Mux for the button to be evaluated.
type Button struct {
	Type      car.ButtonType
	Message   string
	Signal    string
	Values    []int
	MuxSignal string
	Mux       int
}

func (b Button) pressed(raw float64) bool {
	for _, v := range b.Values {
		if int(raw) == v {
			return true
		}
	}
	return false
}

func intRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

// Buttons returns the button table for a profile. All buttons live on the
// vehicle bus.
func Buttons(p Profile) []Button {
	buttons := []Button{
		{Type: car.ButtonAccelCruise, Message: "VCLEFT_switchStatus", Signal: "VCLEFT_swcRightScrollTicks", Values: intRange(1, 10)},
		{Type: car.ButtonDecelCruise, Message: "VCLEFT_switchStatus", Signal: "VCLEFT_swcRightScrollTicks", Values: intRange(-9, 0)},
		{Type: car.ButtonCancel, Message: "SCCM_rightStalk", Signal: "SCCM_rightStalkStatus", Values: []int{StalkUp1, StalkUp2}},
		// TODO: directional gap adjustment once tilt left is decoded
		{Type: car.ButtonGapAdjustCruise, Message: "VCLEFT_switchStatus", Signal: "VCLEFT_swcRightTiltRight", Values: []int{2},
			MuxSignal: "VCLEFT_switchStatusIndex", Mux: 1},
	}
	if p.Engagement == EngagementStalk {
		buttons = append(buttons,
			Button{Type: car.ButtonAltButton1, Message: "SCCM_rightStalk", Signal: "SCCM_rightStalkStatus", Values: []int{StalkDown1, StalkDown2}},
			Button{Type: car.ButtonAltButton2, Message: "SCCM_rightStalk", Signal: "SCCM_rightStalkStatus", Values: []int{StalkDown2}},
		)
	} else {
		// three-finger touch on the center display
		buttons = append(buttons,
			Button{Type: car.ButtonAltButton2, Message: "UI_status2", Signal: "UI_activeTouchPoints", Values: []int{3}},
		)
	}
	return buttons
}
