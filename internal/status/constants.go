// internal/status/constants.go
package status

import "time"

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device.
const HealthOK uint16 = 1

// HealthError represents a device error state.
const HealthError uint16 = 2

// HealthStale represents a stale data state.
const HealthStale uint16 = 3

// HealthDisabled represents a device outside the polled slave set.
const HealthDisabled uint16 = 4

// ---- LIMITS ----

// MaxSecondsInError caps SecondsInError to one register word.
const MaxSecondsInError = 65535

// MinStaleAfter is the floor of the staleness window.
const MinStaleAfter = time.Second

// StaleFactor multiplies the poll interval into the staleness window.
const StaleFactor = 3

// HealthName returns the display name of a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// StaleAfter is how long data may go unrefreshed at interval.
func StaleAfter(interval time.Duration) time.Duration {
	return max(StaleFactor*interval, MinStaleAfter)
}
