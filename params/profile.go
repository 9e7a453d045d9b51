package params

import "das-core/car/tesla"

// LoadProfile reads the session toggles once at startup. Missing toggles
// are off.
func LoadProfile(p *Params) tesla.Profile {
	profile := tesla.Profile{
		TorqueBlending:  p.GetBool(TeslaTorqueBlending),
		Engagement:      tesla.EngagementToggle,
		AccFirst:        p.GetBool(TeslaMadsAccFirst),
		Combo:           p.GetBool(TeslaMadsCombo),
		OwnLongitudinal: p.GetBool(TeslaLongControl),
		EnableBSM:       p.GetBool(TeslaEnableBsm),
	}
	if p.GetBool(EnableMads) {
		profile.Engagement = tesla.EngagementStalk
	}
	return profile
}
