package domain

import "time"

// DefaultCooldown is the minimum gap between two notifications for the
// same item.
const DefaultCooldown = 6 * time.Hour

// CooldownGate suppresses re-notification of an item inside the window.
// It is checked after the diff evaluator; a suppressed item still gets its
// stored snapshot updated, so the window is measured from the last actual
// notification and later diffs compare against fresh values.
type CooldownGate struct {
	Window time.Duration
}

// InCooldown reports whether prev was notified less than Window ago.
// A nil prev or a never-notified item is never in cooldown.
func (g CooldownGate) InCooldown(prev *ItemSnapshot, now time.Time) bool {
	if prev == nil || prev.LastNotifiedAt == 0 {
		return false
	}
	return now.Sub(time.Unix(prev.LastNotifiedAt, 0)) < g.Window
}
