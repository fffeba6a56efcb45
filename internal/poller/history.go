// internal/poller/history.go
package poller

import "time"

type sample struct {
	at    time.Time
	value float64
}

// history is a set of time series bounded by a retention window.
// Not safe for concurrent use; the engine lock guards it.
type history struct {
	retention time.Duration
	series    map[string][]sample
}

func newHistory(retention time.Duration) *history {
	return &history{retention: retention, series: make(map[string][]sample)}
}

// append adds a sample and drops samples older than the window.
func (h *history) append(key string, at time.Time, v float64) {
	s := append(h.series[key], sample{at: at, value: v})
	h.series[key] = trim(s, at.Add(-h.retention))
}

// trim drops samples before cutoff, reusing the backing array once the
// dead prefix outgrows the live tail.
func trim(s []sample, cutoff time.Time) []sample {
	i := 0
	for i < len(s) && s[i].at.Before(cutoff) {
		i++
	}
	if i == 0 {
		return s
	}
	if i > len(s)-i {
		return append(s[:0], s[i:]...)
	}
	return s[i:]
}

// query returns samples within window of now, as offsets from now.
// The series is trimmed to the retention window first.
func (h *history) query(key string, now time.Time, window time.Duration) Series {
	s, ok := h.series[key]
	if !ok {
		return Series{}
	}
	s = trim(s, now.Add(-h.retention))
	h.series[key] = s

	window = clamp(window, 0, h.retention)
	cutoff := now.Add(-window)

	var out Series
	for _, p := range s {
		if p.at.Before(cutoff) {
			continue
		}
		out.Offsets = append(out.Offsets, p.at.Sub(now).Seconds())
		out.Values = append(out.Values, p.value)
	}
	return out
}

func (h *history) len(key string) int { return len(h.series[key]) }

func (h *history) clear() {
	h.series = make(map[string][]sample)
}

