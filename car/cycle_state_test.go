package car

import (
	"testing"
	"time"
)

func TestFrameScheduler(t *testing.T) {
	var s FrameScheduler
	var steer, cancel int
	for i := 0; i < 100; i++ {
		if s.Every(2) {
			steer++
		}
		if s.Every(10) {
			cancel++
		}
		s.Advance()
	}
	if steer != 50 || cancel != 10 {
		t.Errorf("steer=%d cancel=%d, want 50 and 10", steer, cancel)
	}
	if s.Frame() != 100 {
		t.Errorf("frame = %d, want 100", s.Frame())
	}
	if !s.Every(1) || !s.Every(0) {
		t.Error("Every(1) must always fire")
	}
}

func TestCounterWraps(t *testing.T) {
	c := NewCounter(8)
	var got []int
	for i := 0; i < 10; i++ {
		got = append(got, c.Next())
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("counter sequence %v, want %v", got, want)
		}
	}
}

func TestTimer(t *testing.T) {
	var tm Timer
	if tm.Running() || tm.Elapsed(100) != 0 {
		t.Fatal("new timer should be stopped")
	}
	tm.Start(int64(time.Second))
	tm.Start(int64(2 * time.Second)) // ignored, already running
	if got := tm.Elapsed(int64(3 * time.Second)); got != 2*time.Second {
		t.Errorf("elapsed = %v, want 2s", got)
	}
	tm.Stop()
	if tm.Running() {
		t.Error("timer still running after Stop")
	}
}

func TestEngagementDisable(t *testing.T) {
	e := EngagementState{LaneAssistEnabled: true, CruiseEnabled: true}
	e.Disable()
	if e.LaneAssistEnabled || e.CruiseEnabled {
		t.Error("Disable left an axis enabled")
	}
}

func TestNewControlCycleState(t *testing.T) {
	st := NewControlCycleState()
	for i := 0; i < 16; i++ {
		st.SteerCounter.Next()
	}
	if st.SteerCounter.Value() != 0 {
		t.Errorf("steer counter should wrap at 16, got %d", st.SteerCounter.Value())
	}
	if st.Engagement.LaneAssistEnabled || st.Engagement.CruiseEnabled {
		t.Error("engagement must start disabled")
	}
}
