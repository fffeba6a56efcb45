// internal/model/register.go
package model

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tamzrod/modbus-monitor/internal/codec"
)

// Protocol limits.
const (
	MinSlaveID = 1
	MaxSlaveID = 247
	MaxSize    = 4
)

// Key identifies a register on the bus.
type Key struct {
	Slave   uint8
	Address uint16
}

func (k Key) String() string { return Designator(k.Slave, k.Address) }

// Designator returns the register key string, e.g. D1.R13.
func Designator(slave uint8, address uint16) string {
	return "D" + strconv.Itoa(int(slave)) + ".R" + strconv.Itoa(int(address))
}

// Register is a register definition plus its runtime state.
// Runtime fields are written only by the engine, under its lock.
type Register struct {
	Slave      uint8
	Address    uint16
	Size       int // words, 1..4
	Label      string
	Order      codec.ByteOrder
	Scale      float64
	Expression string // optional scaling expression on `value`, replaces Scale
	Access     Access
	Format     Format
	Tier       Tier

	Raw         uint64
	Value       float64
	Previous    float64
	HasValue    bool
	HasPrevious bool
	Err         string
}

func (r *Register) Key() Key { return Key{Slave: r.Slave, Address: r.Address} }

func (r *Register) Designator() string { return Designator(r.Slave, r.Address) }

// End is one past the last address the register occupies.
func (r *Register) End() int { return int(r.Address) + r.Words() }

// Words is the size clamped to at least one word.
func (r *Register) Words() int {
	if r.Size < 1 {
		return 1
	}
	return r.Size
}

func (r *Register) IsFloat() bool { return r.Format == FormatFloat32 }

// Definition returns a copy without runtime state.
func (r *Register) Definition() Register {
	return Register{
		Slave:      r.Slave,
		Address:    r.Address,
		Size:       r.Size,
		Label:      r.Label,
		Order:      r.Order,
		Scale:      r.Scale,
		Expression: r.Expression,
		Access:     r.Access,
		Format:     r.Format,
		Tier:       r.Tier,
	}
}

// Update stores a freshly decoded value and clears the error.
func (r *Register) Update(raw uint64, value float64) {
	if r.HasValue {
		r.Previous = r.Value
		r.HasPrevious = true
	}
	r.Raw = raw
	r.Value = value
	r.HasValue = true
	r.Err = ""
}

// Fail records an error. The last good value stays in place.
func (r *Register) Fail(err error) {
	if err == nil {
		return
	}
	r.Err = err.Error()
}

// HasChanged reports whether the last update changed the scaled value.
func (r *Register) HasChanged() bool {
	return r.HasValue && r.HasPrevious && r.Value != r.Previous
}

// FormatValue renders the current value in the register's display format.
func (r *Register) FormatValue() string {
	if !r.HasValue {
		return "---"
	}
	return r.format(r.Value)
}

func (r *Register) format(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	n := int64(v)
	switch r.Format {
	case FormatHex:
		if r.Words() == 1 {
			return fmt.Sprintf("0x%04X", n&0xFFFF)
		}
		return fmt.Sprintf("0x%08X", n&0xFFFFFFFF)
	case FormatBinary:
		if r.Words() == 1 {
			return fmt.Sprintf("%016b", n&0xFFFF)
		}
		return fmt.Sprintf("%032b", n&0xFFFFFFFF)
	case FormatFloat32:
		return strconv.FormatFloat(v, 'f', 4, 64)
	default:
		if v != float64(n) {
			return strconv.FormatFloat(v, 'f', 4, 64)
		}
		return strconv.FormatInt(n, 10)
	}
}
