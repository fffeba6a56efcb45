// internal/model/enums.go
package model

import (
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-monitor/internal/codec"
)

// Access is the read/write capability of a register.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

// Format is how a register value is presented and decoded.
type Format int

const (
	FormatDecimal Format = iota
	FormatHex
	FormatBinary
	FormatFloat32
)

// Tier is the polling cadence class.
type Tier int

const (
	TierSlow Tier = iota
	TierFast
)

// VariableFormat is how a variable value is presented.
type VariableFormat int

const (
	VarDecimal VariableFormat = iota
	VarFixed2
	VarFixed4
	VarScientific
	VarPercentage
)

func (a Access) String() string {
	switch a {
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "read_write"
	default:
		return "read"
	}
}

// CanWrite reports whether writes are allowed.
func (a Access) CanWrite() bool { return a != AccessRead }

func (f Format) String() string {
	switch f {
	case FormatHex:
		return "hex"
	case FormatBinary:
		return "binary"
	case FormatFloat32:
		return "float32"
	default:
		return "decimal"
	}
}

func (t Tier) String() string {
	if t == TierFast {
		return "fast"
	}
	return "slow"
}

func (f VariableFormat) String() string {
	switch f {
	case VarFixed2:
		return "fixed_2"
	case VarFixed4:
		return "fixed_4"
	case VarScientific:
		return "scientific"
	case VarPercentage:
		return "percentage"
	default:
		return "decimal"
	}
}

// Parse helpers accept the config spelling. Empty selects the default.

func ParseByteOrder(s string) (codec.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "big":
		return codec.BigEndian, nil
	case "little":
		return codec.LittleEndian, nil
	}
	return 0, fmt.Errorf("unknown byte order %q", s)
}

func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "read", "r":
		return AccessRead, nil
	case "write", "w":
		return AccessWrite, nil
	case "read_write", "read-write", "rw":
		return AccessReadWrite, nil
	}
	return 0, fmt.Errorf("unknown access mode %q", s)
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "decimal":
		return FormatDecimal, nil
	case "hex":
		return FormatHex, nil
	case "binary":
		return FormatBinary, nil
	case "float32", "float":
		return FormatFloat32, nil
	}
	return 0, fmt.Errorf("unknown format %q", s)
}

func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "slow":
		return TierSlow, nil
	case "fast":
		return TierFast, nil
	}
	return 0, fmt.Errorf("unknown poll tier %q", s)
}

func ParseVariableFormat(s string) (VariableFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "decimal":
		return VarDecimal, nil
	case "fixed_2":
		return VarFixed2, nil
	case "fixed_4":
		return VarFixed4, nil
	case "scientific":
		return VarScientific, nil
	case "percentage":
		return VarPercentage, nil
	}
	return 0, fmt.Errorf("unknown variable format %q", s)
}
