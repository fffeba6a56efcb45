// internal/status/status_test.go
package status

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/modbus-monitor/internal/model"
	"github.com/tamzrod/modbus-monitor/internal/poller"
)

type fakeSource struct {
	stats  poller.Stats
	slaves []uint8
	regs   []model.Register
	vars   []model.Variable
	bits   []poller.BitValue
}

func (f fakeSource) Stats() poller.Stats { return f.stats }
func (f fakeSource) Slaves() []uint8 { return f.slaves }
func (f fakeSource) Registers() []model.Register { return f.regs }
func (f fakeSource) Variables() []model.Variable { return f.vars }
func (f fakeSource) Bits() []poller.BitValue { return f.bits }

func okReg(slave uint8, addr uint16, v float64) model.Register {
	r := model.Register{Slave: slave, Address: addr, Size: 1, Scale: 1}
	r.Update(uint64(v), v)
	return r
}

func TestSecondsInError_Capped(t *testing.T) {
	if got := SecondsInError(90 * time.Second); got != 90 {
		t.Fatalf("got %d", got)
	}
	if got := SecondsInError(48 * time.Hour); got != MaxSecondsInError {
		t.Fatalf("got %d", got)
	}
	if got := SecondsInError(-time.Second); got != 0 {
		t.Fatalf("got %d", got)
	}
}

func TestDevices_Health(t *testing.T) {
	now := time.Unix(10_000, 0)

	failing := okReg(2, 0, 1)
	failing.Fail(errors.New("serial: timeout"))

	st := poller.Stats{
		Interval:   100 * time.Millisecond,
		LastPoll:   now.Add(-50 * time.Millisecond),
		ErrorSince: map[uint8]time.Time{2: now.Add(-30 * time.Second)},
	}
	regs := []model.Register{
		okReg(1, 0, 5),
		failing,
		{Slave: 3, Address: 0, Size: 1},
		okReg(4, 0, 1),
	}

	devs := Devices(now, st, []uint8{1, 2, 3}, regs)
	if len(devs) != 4 {
		t.Fatalf("expected 4 devices, got %d", len(devs))
	}

	want := []uint16{HealthOK, HealthError, HealthUnknown, HealthDisabled}
	for i, d := range devs {
		if d.Slave != uint8(i+1) || d.Health != want[i] {
			t.Fatalf("device %d: %+v", i, d)
		}
		if d.HealthName != HealthName(want[i]) {
			t.Fatalf("device %d name=%q", i, d.HealthName)
		}
	}
	if devs[1].SecondsInError != 30 || devs[1].LastError != "serial: timeout" {
		t.Fatalf("error device=%+v", devs[1])
	}
}

func TestDevices_Stale(t *testing.T) {
	now := time.Unix(10_000, 0)
	st := poller.Stats{Interval: 100 * time.Millisecond, LastPoll: now.Add(-5 * time.Second)}

	devs := Devices(now, st, nil, []model.Register{okReg(1, 0, 1)})
	if devs[0].Health != HealthStale {
		t.Fatalf("expected stale, got %+v", devs[0])
	}
}

func TestTake_AndEncode(t *testing.T) {
	now := time.Unix(10_000, 0)

	w := okReg(1, 0, 3)
	w.Access = model.AccessReadWrite
	w.Update(4, 4)

	v := model.Variable{Name: "total"}
	v.Set(7)
	bad := model.Variable{Name: "ratio"}
	bad.Stale(errors.New("division by zero"))

	src := fakeSource{
		stats: poller.Stats{Running: true, PollCount: 9, Interval: 100 * time.Millisecond, LastPoll: now},
		regs:  []model.Register{w},
		vars:  []model.Variable{v, bad},
		bits: []poller.BitValue{
			{Bit: model.Bit{Name: "alarm", Slave: 1, Address: 0, Index: 2}, Value: true, HasValue: true},
		},
	}

	s := Take(src, now)
	if !s.Running || s.PollCount != 9 || s.IntervalMs != 100 || s.At != now.UnixMilli() {
		t.Fatalf("header=%+v", s)
	}
	if r := s.Registers[0]; r.Key != "D1.R0" || !r.Changed || !r.Writable || r.Health != HealthOK || r.Display != "4" {
		t.Fatalf("register=%+v", r)
	}
	if s.Variables[0].Health != HealthOK || s.Variables[1].Health != HealthError {
		t.Fatalf("variables=%+v", s.Variables)
	}
	if b := s.Bits[0]; b.Key != "D1.R0.B2" || !b.On || !b.Known {
		t.Fatalf("bit=%+v", b)
	}

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode err=%v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if back["poll_count"].(float64) != 9 {
		t.Fatalf("poll_count=%v", back["poll_count"])
	}
}
