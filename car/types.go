package car

import (
	"go.einride.tech/can"
)

type GearShifter int

const (
	GearUnknown GearShifter = iota
	GearPark
	GearReverse
	GearNeutral
	GearDrive
)

func (g GearShifter) String() string {
	switch g {
	case GearPark:
		return "park"
	case GearReverse:
		return "reverse"
	case GearNeutral:
		return "neutral"
	case GearDrive:
		return "drive"
	default:
		return "unknown"
	}
}

func (g GearShifter) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GearShifter) UnmarshalText(b []byte) error {
	*g = GearUnknown
	for v := GearPark; v <= GearDrive; v++ {
		if v.String() == string(b) {
			*g = v
		}
	}
	return nil
}

type ButtonType int

const (
	ButtonUnknown ButtonType = iota
	ButtonAccelCruise
	ButtonDecelCruise
	ButtonCancel
	ButtonResumeCruise
	ButtonAltButton1
	ButtonAltButton2
	ButtonGapAdjustCruise
)

func (b ButtonType) String() string {
	switch b {
	case ButtonAccelCruise:
		return "accelCruise"
	case ButtonDecelCruise:
		return "decelCruise"
	case ButtonCancel:
		return "cancel"
	case ButtonResumeCruise:
		return "resumeCruise"
	case ButtonAltButton1:
		return "altButton1"
	case ButtonAltButton2:
		return "altButton2"
	case ButtonGapAdjustCruise:
		return "gapAdjustCruise"
	default:
		return "unknown"
	}
}

func (b ButtonType) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *ButtonType) UnmarshalText(text []byte) error {
	*b = ButtonUnknown
	for v := ButtonAccelCruise; v <= ButtonGapAdjustCruise; v++ {
		if v.String() == string(text) {
			*b = v
		}
	}
	return nil
}

// ButtonEvent is emitted only when a button changes state.
type ButtonEvent struct {
	Type    ButtonType `json:"type"`
	Pressed bool       `json:"pressed"`
	Frame   uint64     `json:"frame"`
}

type CruiseState struct {
	Enabled    bool    `json:"enabled"`
	Available  bool    `json:"available"`
	Standstill bool    `json:"standstill"`
	Speed      float64 `json:"speed"`       // m/s
	SpeedLimit float64 `json:"speed_limit"` // m/s, 0 when none reported
}

// VehicleState is the canonical per-cycle view of the vehicle.
// Speeds are m/s, angles degrees, torque Nm.
type VehicleState struct {
	VEgoRaw    float64 `json:"v_ego_raw"`
	VEgo       float64 `json:"v_ego"`
	AEgo       float64 `json:"a_ego"`
	Standstill bool    `json:"standstill"`

	Gas          float64 `json:"gas"`
	GasPressed   bool    `json:"gas_pressed"`
	Brake        float64 `json:"brake"`
	BrakePressed bool    `json:"brake_pressed"`

	SteeringAngleDeg    float64 `json:"steering_angle_deg"`
	SteeringRateDeg     float64 `json:"steering_rate_deg"`
	SteeringTorque      float64 `json:"steering_torque"`
	SteeringPressed     bool    `json:"steering_pressed"`
	SteerFaultTemporary bool    `json:"steer_fault_temporary"`
	SteerFaultPermanent bool    `json:"steer_fault_permanent"`

	GearShifter GearShifter `json:"gear_shifter"`
	CruiseState CruiseState `json:"cruise_state"`

	LeftBlinker       bool `json:"left_blinker"`
	RightBlinker      bool `json:"right_blinker"`
	DoorOpen          bool `json:"door_open"`
	SeatbeltUnlatched bool `json:"seatbelt_unlatched"`
	LeftBlindspot     bool `json:"left_blindspot"`
	RightBlindspot    bool `json:"right_blindspot"`
	StockAeb          bool `json:"stock_aeb"`

	ButtonEvents []ButtonEvent `json:"button_events"`
}

// ActuatorTarget is what the planner asks for in one cycle.
type ActuatorTarget struct {
	LatActive        bool    `json:"lat_active"`
	SteeringAngleDeg float64 `json:"steering_angle_deg"`
	Accel            float64 `json:"accel"`
	Cancel           bool    `json:"cancel"`
}

// CanMsg is an outbound frame and the bus it belongs on.
type CanMsg struct {
	Bus   int
	Frame can.Frame
}

// SignalSource is one decoded channel: value(message, signal).
type SignalSource interface {
	Value(message, signal string) float64
}
