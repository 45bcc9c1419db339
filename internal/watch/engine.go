package watch

import (
	"time"

	"github.com/HerbHall/fleetpulse/internal/fleet"
)

// AlertKind distinguishes the two alert transitions.
type AlertKind string

const (
	AlertOffline  AlertKind = "offline"
	AlertRecovery AlertKind = "recovery"
)

// AlertState is the per-device value persisted between poll cycles.
// Notified is true iff an offline alert has been sent for the current
// offline episode and no recovery alert has been sent yet. MissedPolls
// counts consecutive cycles the device was absent from the snapshot.
type AlertState struct {
	Notified    bool `json:"notified"`
	MissedPolls int  `json:"missed_polls,omitempty"`
}

// Alert is one notification decision produced by a reconcile pass.
type Alert struct {
	Kind           AlertKind `json:"kind"`
	Device         string    `json:"device"`
	LastSeen       time.Time `json:"last_seen"`
	OfflineMinutes int64     `json:"offline_minutes,omitempty"` // set for offline alerts
}

// Result is the outcome of Engine.Reconcile: the alerts due this cycle and
// the state map to persist.
type Result struct {
	Alerts []Alert
	Next   map[string]AlertState
}

// Engine decides which devices need an alert this cycle. It is a pure
// function of (now, snapshot set, prior state): reconciling the same
// snapshot set against the resulting state produces no further alerts.
type Engine struct {
	thresholdMinutes int
	allow            map[string]struct{} // nil means monitor all devices
	evictionCycles   int
}

// NewEngine creates an engine. allowed restricts monitoring to the named
// devices (matched against both full and short names); empty means all.
// evictionCycles is how many consecutive polls a device may be absent from
// the snapshot before its entry is dropped; 0 drops on the first absence.
func NewEngine(thresholdMinutes int, allowed []string, evictionCycles int) *Engine {
	var allow map[string]struct{}
	if len(allowed) > 0 {
		allow = make(map[string]struct{}, len(allowed))
		for _, name := range allowed {
			allow[name] = struct{}{}
		}
	}
	return &Engine{
		thresholdMinutes: thresholdMinutes,
		allow:            allow,
		evictionCycles:   evictionCycles,
	}
}

// Reconcile classifies every device in the snapshot against the threshold
// and runs the per-device state machine:
//
//	notified=false, online  -> nothing
//	notified=false, offline -> offline alert, notified=true
//	notified=true,  offline -> suppressed (already alerted this episode)
//	notified=true,  online  -> recovery alert, notified=false
//
// Devices absent from the snapshot accumulate MissedPolls and are evicted
// once the count exceeds evictionCycles, so a transient API omission does
// not silently reset alert suppression.
func (e *Engine) Reconcile(now time.Time, devices []fleet.Device, prior map[string]AlertState) Result {
	res := Result{
		Next: make(map[string]AlertState, len(devices)),
	}

	for _, d := range devices {
		if !e.monitored(d) {
			continue
		}

		st := prior[d.Name] // zero value means never alerted
		st.MissedPolls = 0

		offline := Classify(now, d.LastSeen, e.thresholdMinutes) == StatusOffline
		switch {
		case offline && !st.Notified:
			res.Alerts = append(res.Alerts, Alert{
				Kind:           AlertOffline,
				Device:         d.Name,
				LastSeen:       d.LastSeen,
				OfflineMinutes: MinutesSince(now, d.LastSeen),
			})
			st.Notified = true
		case !offline && st.Notified:
			res.Alerts = append(res.Alerts, Alert{
				Kind:     AlertRecovery,
				Device:   d.Name,
				LastSeen: d.LastSeen,
			})
			st.Notified = false
		}

		res.Next[d.Name] = st
	}

	// Devices present in prior state but missing from this snapshot.
	for name, st := range prior {
		if _, seen := res.Next[name]; seen {
			continue
		}
		st.MissedPolls++
		if st.MissedPolls > e.evictionCycles {
			continue // dropped from the store
		}
		res.Next[name] = st
	}

	return res
}

func (e *Engine) monitored(d fleet.Device) bool {
	if e.allow == nil {
		return true
	}
	if _, ok := e.allow[d.Name]; ok {
		return true
	}
	_, ok := e.allow[d.ShortName()]
	return ok
}
