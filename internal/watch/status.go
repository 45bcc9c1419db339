package watch

import "time"

// Status is the staleness classification of a device.
type Status int

const (
	StatusOnline Status = iota
	StatusOffline
)

func (s Status) String() string {
	if s == StatusOffline {
		return "offline"
	}
	return "online"
}

// MinutesSince returns floor((now - lastSeen) / 1 minute). A lastSeen in the
// future (clock skew between the control plane and this host) yields a
// negative value.
func MinutesSince(now, lastSeen time.Time) int64 {
	d := now.Sub(lastSeen)
	mins := int64(d / time.Minute)
	if d < 0 && d%time.Minute != 0 {
		mins-- // floor, not truncate
	}
	return mins
}

// Classify reports whether a device is considered offline: strictly more
// than thresholdMinutes whole minutes since last contact. A device exactly
// at the threshold is still online, as is one with a future lastSeen.
func Classify(now, lastSeen time.Time, thresholdMinutes int) Status {
	if MinutesSince(now, lastSeen) > int64(thresholdMinutes) {
		return StatusOffline
	}
	return StatusOnline
}
