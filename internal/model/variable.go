// internal/model/variable.go
package model

import (
	"math"
	"strconv"
)

// Variable is a computed value over register references.
type Variable struct {
	Name       string
	Label      string
	Expression string
	Format     VariableFormat

	Value    float64
	HasValue bool
	Err      string
}

// Definition returns a copy without runtime state.
func (v *Variable) Definition() Variable {
	return Variable{
		Name:       v.Name,
		Label:      v.Label,
		Expression: v.Expression,
		Format:     v.Format,
	}
}

func (v *Variable) Set(value float64) {
	v.Value = value
	v.HasValue = true
	v.Err = ""
}

// Stale clears the value and records why.
func (v *Variable) Stale(err error) {
	v.Value = 0
	v.HasValue = false
	if err != nil {
		v.Err = err.Error()
	}
}

func (v *Variable) FormatValue() string {
	if !v.HasValue {
		return "---"
	}
	x := v.Value
	switch v.Format {
	case VarFixed2:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case VarFixed4:
		return strconv.FormatFloat(x, 'f', 4, 64)
	case VarScientific:
		return strconv.FormatFloat(x, 'e', 4, 64)
	case VarPercentage:
		return strconv.FormatFloat(x, 'f', 2, 64) + "%"
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	if math.Abs(x-math.Trunc(x)) > 0.0001 {
		return strconv.FormatFloat(x, 'f', 4, 64)
	}
	return strconv.FormatInt(int64(x), 10)
}

// Bit is a single bit of a 16-bit register.
type Bit struct {
	Name    string
	Slave   uint8
	Address uint16
	Index   uint8 // 0..15
	Label   string
}

// Designator returns e.g. D1.R13.B5.
func (b Bit) Designator() string {
	return Designator(b.Slave, b.Address) + ".B" + strconv.Itoa(int(b.Index))
}

func (b Bit) Key() Key { return Key{Slave: b.Slave, Address: b.Address} }

// Extract reads the bit out of a register value.
func (b Bit) Extract(raw uint64) bool {
	return (raw>>b.Index)&1 == 1
}

// Apply returns raw with the bit set or cleared.
func (b Bit) Apply(raw uint16, on bool) uint16 {
	if on {
		return raw | 1<<b.Index
	}
	return raw &^ (1 << b.Index)
}
