package watch

import (
	"testing"
	"time"

	"github.com/HerbHall/fleetpulse/internal/fleet"
)

func TestEngine_OfflineThenRecovery(t *testing.T) {
	eng := NewEngine(6, nil, 3)
	now := time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC)

	// First cycle: the device was last seen at 00:00, 10 minutes ago.
	devices := []fleet.Device{
		{Name: "server-a", LastSeen: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	res := eng.Reconcile(now, devices, map[string]AlertState{})

	if len(res.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(res.Alerts))
	}
	a := res.Alerts[0]
	if a.Kind != AlertOffline || a.Device != "server-a" || a.OfflineMinutes != 10 {
		t.Errorf("unexpected alert: %+v", a)
	}
	if !res.Next["server-a"].Notified {
		t.Error("expected notified=true after offline alert")
	}

	// Same snapshot again: still offline, already notified, no new alert.
	res = eng.Reconcile(now.Add(time.Minute), devices, res.Next)
	if len(res.Alerts) != 0 {
		t.Fatalf("expected suppressed repeat, got %d alerts", len(res.Alerts))
	}
	if !res.Next["server-a"].Notified {
		t.Error("notified flag should persist while offline")
	}

	// Device comes back: last seen at 00:09, one minute before now.
	devices[0].LastSeen = time.Date(2024, 1, 1, 0, 9, 0, 0, time.UTC)
	res = eng.Reconcile(now, devices, res.Next)
	if len(res.Alerts) != 1 {
		t.Fatalf("expected recovery alert, got %d alerts", len(res.Alerts))
	}
	if res.Alerts[0].Kind != AlertRecovery {
		t.Errorf("expected recovery, got %s", res.Alerts[0].Kind)
	}
	if res.Next["server-a"].Notified {
		t.Error("expected notified=false after recovery")
	}
}

func TestEngine_Idempotent(t *testing.T) {
	eng := NewEngine(6, nil, 3)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	devices := []fleet.Device{
		{Name: "a", LastSeen: now.Add(-30 * time.Minute)},
		{Name: "b", LastSeen: now.Add(-1 * time.Minute)},
		{Name: "c", LastSeen: now.Add(-7 * time.Minute)},
	}

	res := eng.Reconcile(now, devices, map[string]AlertState{})
	if len(res.Alerts) != 2 {
		t.Fatalf("expected 2 offline alerts, got %d", len(res.Alerts))
	}

	// Reconciling the same snapshot against the produced state is a no-op.
	again := eng.Reconcile(now, devices, res.Next)
	if len(again.Alerts) != 0 {
		t.Errorf("expected no alerts on identical reconcile, got %d", len(again.Alerts))
	}
}

func TestEngine_OnlineDeviceNeverAlerts(t *testing.T) {
	eng := NewEngine(6, nil, 3)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	devices := []fleet.Device{{Name: "a", LastSeen: now.Add(-1 * time.Minute)}}

	res := eng.Reconcile(now, devices, map[string]AlertState{})
	if len(res.Alerts) != 0 {
		t.Fatalf("expected no alerts, got %d", len(res.Alerts))
	}
	if st := res.Next["a"]; st.Notified {
		t.Error("online device should not be marked notified")
	}
}

func TestEngine_AllowList(t *testing.T) {
	eng := NewEngine(6, []string{"server-a", "laptop"}, 3)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	offline := now.Add(-20 * time.Minute)
	devices := []fleet.Device{
		{Name: "server-a", LastSeen: offline},
		{Name: "server-b", LastSeen: offline},
		{Name: "laptop.tailnet.ts.net", LastSeen: offline},
	}

	res := eng.Reconcile(now, devices, map[string]AlertState{})
	if len(res.Alerts) != 2 {
		t.Fatalf("expected 2 alerts (server-b filtered), got %d", len(res.Alerts))
	}
	if _, ok := res.Next["server-b"]; ok {
		t.Error("unmonitored device should not be tracked")
	}
	// Short-name match keeps the full name as the state key.
	if _, ok := res.Next["laptop.tailnet.ts.net"]; !ok {
		t.Error("device matched by short name should be tracked")
	}
}

func TestEngine_AbsentDeviceEviction(t *testing.T) {
	eng := NewEngine(6, nil, 2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	prior := map[string]AlertState{"gone": {Notified: true}}

	// Absent once and twice: entry retained, MissedPolls accumulates.
	res := eng.Reconcile(now, nil, prior)
	if st, ok := res.Next["gone"]; !ok || st.MissedPolls != 1 || !st.Notified {
		t.Fatalf("after 1 miss: %+v, %v", res.Next["gone"], ok)
	}
	res = eng.Reconcile(now, nil, res.Next)
	if st, ok := res.Next["gone"]; !ok || st.MissedPolls != 2 {
		t.Fatalf("after 2 misses: %+v, %v", st, ok)
	}

	// Third consecutive miss exceeds evictionCycles=2: dropped.
	res = eng.Reconcile(now, nil, res.Next)
	if _, ok := res.Next["gone"]; ok {
		t.Error("expected entry evicted after exceeding miss limit")
	}
}

func TestEngine_AbsenceDoesNotResetSuppression(t *testing.T) {
	eng := NewEngine(6, nil, 3)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	offline := now.Add(-30 * time.Minute)

	// Alerted, then absent for one cycle, then back in the snapshot still
	// offline. Without retention this would fire a duplicate offline alert.
	res := eng.Reconcile(now, []fleet.Device{{Name: "a", LastSeen: offline}}, map[string]AlertState{})
	if len(res.Alerts) != 1 {
		t.Fatalf("setup: expected 1 alert, got %d", len(res.Alerts))
	}

	res = eng.Reconcile(now, nil, res.Next)
	if len(res.Alerts) != 0 {
		t.Fatalf("absence should not alert, got %d", len(res.Alerts))
	}

	res = eng.Reconcile(now, []fleet.Device{{Name: "a", LastSeen: offline}}, res.Next)
	if len(res.Alerts) != 0 {
		t.Errorf("expected suppression to survive transient absence, got %d alerts", len(res.Alerts))
	}
	if st := res.Next["a"]; st.MissedPolls != 0 {
		t.Errorf("MissedPolls should reset on reappearance, got %d", st.MissedPolls)
	}
}

func TestEngine_ImmediateEviction(t *testing.T) {
	// evictionCycles=0 drops an entry on its first absence.
	eng := NewEngine(6, nil, 0)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	prior := map[string]AlertState{"gone": {Notified: true}}

	res := eng.Reconcile(now, nil, prior)
	if _, ok := res.Next["gone"]; ok {
		t.Error("expected immediate eviction with evictionCycles=0")
	}
}
