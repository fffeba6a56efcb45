// internal/writer/builder.go
package writer

import (
	"fmt"
	"math"

	"github.com/tamzrod/modbus-monitor/internal/codec"
	"github.com/tamzrod/modbus-monitor/internal/model"
)

// BuildPlan converts an engineering value into the words to write.
// float32 registers take the value as-is; others divide by the scale
// and round to the nearest integer.
func BuildPlan(reg model.Register, value float64) (Plan, error) {
	if !reg.Access.CanWrite() {
		return Plan{}, fmt.Errorf("writer: %s: %w", reg.Designator(), ErrReadOnly)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Plan{}, fmt.Errorf("writer: %s: %w", reg.Designator(), ErrOutOfRange)
	}

	plan := Plan{Slave: reg.Slave, Address: reg.Address}

	if reg.IsFloat() {
		raw := codec.FloatToRaw(float32(value), reg.Order)
		plan.Words = codec.SplitUint(raw, 2, reg.Order)
		return plan, nil
	}

	if reg.Expression != "" {
		return Plan{}, fmt.Errorf("writer: %s: %w", reg.Designator(), ErrExpressionScaled)
	}

	scale := reg.Scale
	if scale == 0 {
		scale = 1
	}
	raw := math.Round(value / scale)

	n := reg.Words()
	lo, hi := rawRange(n)
	if raw < lo || raw > hi {
		return Plan{}, fmt.Errorf("writer: %s: raw %v not in [%v, %v]: %w",
			reg.Designator(), raw, lo, hi, ErrOutOfRange)
	}

	if raw > math.MaxInt64 {
		plan.Words = codec.SplitUint(uint64(raw), n, reg.Order)
	} else {
		plan.Words = codec.Split(int64(raw), n, reg.Order)
	}
	return plan, nil
}

// rawRange is the signed minimum and unsigned maximum of n words.
func rawRange(n int) (float64, float64) {
	bits := float64(16 * n)
	return -math.Pow(2, bits-1), math.Pow(2, bits) - 1
}

// BuildBitPlan returns the write that sets or clears bit within the
// current register word.
func BuildBitPlan(bit model.Bit, current uint16, on bool) Plan {
	return Plan{
		Slave:   bit.Slave,
		Address: bit.Address,
		Words:   []uint16{bit.Apply(current, on)},
	}
}
