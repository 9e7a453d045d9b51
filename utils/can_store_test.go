package utils

import "testing"

func TestSignalStore(t *testing.T) {
	m := loadTestMap(t)

	if _, err := NewSignalStore(m, []string{"MISSING"}); err == nil {
		t.Fatal("expected error for unknown message")
	}

	store, err := NewSignalStore(m, []string{"VCLEFT_switchStatus"})
	if err != nil {
		t.Fatalf("NewSignalStore: %v", err)
	}

	snap := store.Snapshot()
	if v := snap.Value("VCLEFT_switchStatus", "VCLEFT_swcRightScrollTicks"); v != 0 {
		t.Errorf("initial value = %v, want 0", v)
	}

	f, _ := m.EncodeFrame("VCLEFT_switchStatus", map[string]float64{"VCLEFT_swcRightScrollTicks": 4})
	if !store.Update(f) {
		t.Fatal("subscribed frame not accepted")
	}
	other, _ := m.EncodeFrame("DAS_steeringControl", nil)
	if store.Update(other) {
		t.Error("unsubscribed frame accepted")
	}

	if v := store.Snapshot().Value("VCLEFT_switchStatus", "VCLEFT_swcRightScrollTicks"); v != 4 {
		t.Errorf("value = %v, want 4", v)
	}
	if snap.Value("VCLEFT_switchStatus", "VCLEFT_swcRightScrollTicks") != 0 {
		t.Error("earlier snapshot changed after update")
	}
	if store.Received("VCLEFT_switchStatus") != 1 {
		t.Errorf("received = %d, want 1", store.Received("VCLEFT_switchStatus"))
	}
}

func TestSnapshotSet(t *testing.T) {
	s := Snapshot{}.Set("A", "x", 1).Set("A", "y", 2)
	c := s.Copy()
	c.Set("A", "x", 5)
	if s.Value("A", "x") != 1 || c.Value("A", "x") != 5 || c.Value("A", "y") != 2 {
		t.Errorf("unexpected snapshot values %v %v", s, c)
	}
	if s.Value("B", "z") != 0 {
		t.Error("missing value should read 0")
	}
}
