package car

import (
	"math"
	"testing"
)

var testLimits = AngleLimits{
	AngleRateLimitUp:   AngleRateLimit{SpeedBP: []float64{0., 5., 15.}, AngleV: []float64{7.0, 1.6, .3}},
	AngleRateLimitDown: AngleRateLimit{SpeedBP: []float64{0., 5., 15.}, AngleV: []float64{7.0, 5.5, 0.8}},
}

func TestInterp(t *testing.T) {
	xp := []float64{0, 5, 15}
	fp := []float64{7.0, 1.6, 0.3}
	tests := []struct {
		x, want float64
	}{
		{-1, 7.0},
		{0, 7.0},
		{2.5, 4.3},
		{5, 1.6},
		{10, 0.95},
		{15, 0.3},
		{40, 0.3},
	}
	for _, tt := range tests {
		if got := Interp(tt.x, xp, fp); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Interp(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
	if Interp(1, nil, nil) != 0 {
		t.Error("empty table should interpolate to 0")
	}
}

func TestApplyStdSteerAngleLimitsRateBound(t *testing.T) {
	for v := 0.0; v <= 40; v += 0.5 {
		up := Interp(v, testLimits.AngleRateLimitUp.SpeedBP, testLimits.AngleRateLimitUp.AngleV)
		down := Interp(v, testLimits.AngleRateLimitDown.SpeedBP, testLimits.AngleRateLimitDown.AngleV)
		bound := math.Max(up, down)
		for last := -90.0; last <= 90; last += 7.5 {
			for target := -120.0; target <= 120; target += 11 {
				got := ApplyStdSteerAngleLimits(target, last, v, testLimits)
				if math.Abs(got-last) > bound+1e-9 {
					t.Fatalf("v=%v last=%v target=%v: delta %v exceeds %v", v, last, target, got-last, bound)
				}
				steerUp := last*target >= 0 && math.Abs(target) > math.Abs(last)
				lim := down
				if steerUp {
					lim = up
				}
				if math.Abs(got-last) > lim+1e-9 {
					t.Fatalf("v=%v last=%v target=%v: delta %v exceeds directional bound %v", v, last, target, got-last, lim)
				}
			}
		}
	}
}

func TestApplyStdSteerAngleLimitsStandstill(t *testing.T) {
	got := ApplyStdSteerAngleLimits(30, 0, 0, testLimits)
	if got != 7.0 {
		t.Errorf("got %v, want up-rate bound 7.0", got)
	}
	// unwinding at speed uses the larger down rate
	got = ApplyStdSteerAngleLimits(0, 10, 15, testLimits)
	if math.Abs(got-9.2) > 1e-9 {
		t.Errorf("got %v, want 9.2", got)
	}
	// small requests pass through unchanged
	if got := ApplyStdSteerAngleLimits(0.1, 0, 15, testLimits); got != 0.1 {
		t.Errorf("got %v, want 0.1", got)
	}
}

func TestClip(t *testing.T) {
	if Clip(5, -1, 1) != 1 || Clip(-5, -1, 1) != -1 || Clip(0.5, -1, 1) != 0.5 {
		t.Error("Clip out of range")
	}
}
