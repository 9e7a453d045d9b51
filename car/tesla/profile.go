package tesla

type EngagementMode int

const (
	// EngagementStalk arms lane assist and cruise from the right stalk
	// (half press, full press, release).
	EngagementStalk EngagementMode = iota
	// EngagementToggle flips lane assist with a touch gesture; cruise follows
	// the vehicle.
	EngagementToggle
)

func (m EngagementMode) String() string {
	if m == EngagementToggle {
		return "toggle"
	}
	return "stalk"
}

// Profile is the per-session configuration. It is read once at startup and
// never changes afterwards.
type Profile struct {
	TorqueBlending  bool           `json:"torque_blending"`
	Engagement      EngagementMode `json:"engagement"`
	AccFirst        bool           `json:"acc_first"`
	Combo           bool           `json:"combo"`
	OwnLongitudinal bool           `json:"own_longitudinal"`
	EnableBSM       bool           `json:"enable_bsm"`
}

func DefaultProfile() Profile {
	return Profile{
		TorqueBlending:  true,
		Engagement:      EngagementStalk,
		OwnLongitudinal: true,
	}
}
