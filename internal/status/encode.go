// internal/status/encode.go
package status

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/tamzrod/modbus-monitor/internal/model"
	"github.com/tamzrod/modbus-monitor/internal/poller"
)

// Source is the engine surface a snapshot is taken from.
type Source interface {
	Stats() poller.Stats
	Slaves() []uint8
	Registers() []model.Register
	Variables() []model.Variable
	Bits() []poller.BitValue
}

// Take builds a snapshot of src at now.
// No IO. No side effects.
func Take(src Source, now time.Time) Snapshot {
	st := src.Stats()
	regs := src.Registers()

	s := Snapshot{
		At:             now.UnixMilli(),
		Running:        st.Running,
		PollCount:      st.PollCount,
		ErrorCount:     st.ErrorCount,
		IntervalMs:     st.Interval.Milliseconds(),
		LastDurationMs: float64(st.LastDuration) / float64(time.Millisecond),
		Devices:        Devices(now, st, src.Slaves(), regs),
	}

	for i := range regs {
		r := &regs[i]
		s.Registers = append(s.Registers, Register{
			Key:      r.Designator(),
			Label:    r.Label,
			Raw:      r.Raw,
			Value:    r.Value,
			Display:  r.FormatValue(),
			Changed:  r.HasChanged(),
			Writable: r.Access.CanWrite(),
			Health:   RegisterHealth(r),
			Error:    r.Err,
		})
	}

	for _, v := range src.Variables() {
		s.Variables = append(s.Variables, Variable{
			Name:    v.Name,
			Label:   v.Label,
			Value:   v.Value,
			Display: v.FormatValue(),
			Health:  VariableHealth(v),
			Error:   v.Err,
		})
	}

	for _, b := range src.Bits() {
		s.Bits = append(s.Bits, Bit{
			Key:   b.Designator(),
			Name:  b.Name,
			Label: b.Label,
			On:    b.Value,
			Known: b.HasValue,
		})
	}
	return s
}

// Encode serializes a snapshot for the wire.
func Encode(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// RegisterHealth maps a register's runtime state to a health code.
func RegisterHealth(r *model.Register) uint16 {
	switch {
	case r.Err != "":
		return HealthError
	case !r.HasValue:
		return HealthUnknown
	default:
		return HealthOK
	}
}

func VariableHealth(v model.Variable) uint16 {
	switch {
	case v.Err != "":
		return HealthError
	case !v.HasValue:
		return HealthUnknown
	default:
		return HealthOK
	}
}

// Devices derives one health record per slave that owns a register,
// ascending by slave. polled restricts the active set; empty means all.
func Devices(now time.Time, st poller.Stats, polled []uint8, regs []model.Register) []Device {
	active := make(map[uint8]bool, len(polled))
	for _, id := range polled {
		active[id] = true
	}

	type acc struct {
		anyValue bool
		lastErr  string
	}
	bySlave := make(map[uint8]*acc)
	for i := range regs {
		r := &regs[i]
		a, ok := bySlave[r.Slave]
		if !ok {
			a = &acc{}
			bySlave[r.Slave] = a
		}
		a.anyValue = a.anyValue || r.HasValue
		if r.Err != "" && a.lastErr == "" {
			a.lastErr = r.Err
		}
	}

	stale := st.LastPoll.IsZero() || now.Sub(st.LastPoll) > StaleAfter(st.Interval)

	out := make([]Device, 0, len(bySlave))
	for slave, a := range bySlave {
		d := Device{Slave: slave, Health: HealthOK}
		switch {
		case len(active) > 0 && !active[slave]:
			d.Health = HealthDisabled
		case a.lastErr != "":
			d.Health = HealthError
			d.LastError = a.lastErr
			if since, ok := st.ErrorSince[slave]; ok {
				d.SecondsInError = SecondsInError(now.Sub(since))
			}
		case !a.anyValue:
			d.Health = HealthUnknown
		case stale:
			d.Health = HealthStale
		}
		d.HealthName = HealthName(d.Health)
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Slave < out[j].Slave })
	return out
}

// SecondsInError converts d to whole seconds, capped at MaxSecondsInError.
func SecondsInError(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if secs > MaxSecondsInError {
		return MaxSecondsInError
	}
	return uint16(secs)
}
