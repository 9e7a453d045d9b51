package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Scenario stands in for the upstream planner: a timeline of what the
// driver-assistance stack asks for.
type Scenario struct {
	Meta     ScenarioMeta      `json:"meta"`
	Timing   ScenarioTiming    `json:"timing"`
	Defaults PlanTarget        `json:"defaults"`
	Segments []ScenarioSegment `json:"segments"`
	Planner  *PlannerConfig    `json:"planner,omitempty"` // optional speed PID tuning
}

type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
}

// PlanTarget is the planner output at one instant.
type PlanTarget struct {
	LatActive      bool    `json:"lat_active"`
	SteerDeg       float64 `json:"steer_deg"`
	TargetSpeedMPS float64 `json:"target_speed_mps"`
	Cancel         bool    `json:"cancel"`
}

// ScenarioSegment overrides the defaults over [t0, t1). A negative t1 runs
// to the end of the scenario. Unset fields keep the default.
type ScenarioSegment struct {
	T0             float64  `json:"t0"`
	T1             float64  `json:"t1"`
	LatActive      *bool    `json:"lat_active,omitempty"`
	SteerDeg       *float64 `json:"steer_deg,omitempty"`
	TargetSpeedMPS *float64 `json:"target_speed_mps,omitempty"`
	Cancel         bool     `json:"cancel,omitempty"`
	Comment        string   `json:"comment,omitempty"`
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, errors.Wrap(err, "could not read scenario")
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (Scenario, error) {
	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, errors.Wrap(err, "could not unmarshal scenario")
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, errors.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	for i, seg := range scen.Segments {
		if seg.T1 >= 0 && seg.T1 <= seg.T0 {
			return Scenario{}, errors.Errorf("segment %d: t1 %.2f not after t0 %.2f", i, seg.T1, seg.T0)
		}
		if seg.TargetSpeedMPS != nil && *seg.TargetSpeedMPS < 0 {
			return Scenario{}, errors.Errorf("segment %d: negative target_speed_mps", i)
		}
	}

	if scen.Planner == nil {
		cfg := DefaultPlannerConfig()
		scen.Planner = &cfg
	}
	return scen, nil
}

// EvalTarget evaluates the scenario at time t. The first matching segment wins.
func EvalTarget(scen *Scenario, t float64) PlanTarget {
	target := scen.Defaults

	for _, seg := range scen.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = scen.Timing.DurationS
		}

		if t >= seg.T0 && t < t1 {
			if seg.LatActive != nil {
				target.LatActive = *seg.LatActive
			}
			if seg.SteerDeg != nil {
				target.SteerDeg = *seg.SteerDeg
			}
			if seg.TargetSpeedMPS != nil {
				target.TargetSpeedMPS = *seg.TargetSpeedMPS
			}
			target.Cancel = seg.Cancel
			break
		}
	}

	return target
}
