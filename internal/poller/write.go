// internal/poller/write.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-monitor/internal/codec"
	"github.com/tamzrod/modbus-monitor/internal/model"
	pmodbus "github.com/tamzrod/modbus-monitor/internal/poller/modbus"
	"github.com/tamzrod/modbus-monitor/internal/writer"
)

// WriteRegister converts an engineering value to raw words and writes it
// under the engine lock. Failure is reported as false plus an Error
// notification.
func (e *Engine) WriteRegister(reg model.Register, value float64) bool {
	plan, err := writer.BuildPlan(reg, value)
	if err != nil {
		e.writeFailed(reg.Designator(), err)
		return false
	}
	if !e.client.IsConnected() {
		e.writeFailed(reg.Designator(), ErrNotConnected)
		return false
	}

	e.mu.Lock()
	err = writer.New(e.client).Write(plan)
	e.mu.Unlock()

	if err != nil {
		e.writeFailed(reg.Designator(), err)
		return false
	}
	e.log.Info("register written",
		zap.String("register", reg.Designator()),
		zap.Float64("value", value),
		zap.Uint16s("words", plan.Words))
	return true
}

// WriteBit sets or clears one bit with a read-modify-write of its
// register. The read and the write happen under one hold of the lock.
func (e *Engine) WriteBit(bit model.Bit, on bool) bool {
	if bit.Index > 15 {
		e.writeFailed(bit.Designator(), fmt.Errorf("bit index %d out of range", bit.Index))
		return false
	}
	if !e.client.IsConnected() {
		e.writeFailed(bit.Designator(), ErrNotConnected)
		return false
	}

	e.mu.Lock()
	words, err := e.client.ReadHoldingRegisters(bit.Slave, bit.Address, 1)
	if err == nil && len(words) != 1 {
		err = errShortBlock
	}
	if err == nil {
		err = writer.New(e.client).Write(writer.BuildBitPlan(bit, words[0], on))
	}
	e.mu.Unlock()

	if err != nil {
		e.writeFailed(bit.Designator(), err)
		return false
	}
	return true
}

func (e *Engine) writeFailed(target string, err error) {
	e.log.Warn("write failed", zap.String("target", target), zap.Error(err))
	e.notifyError(fmt.Sprintf("Write error %s: %v", target, err))
}

// ReadRegisterSafe reads reg outside the polling schedule, under the
// engine lock. Failures are logged, never notified; ok is false.
func (e *Engine) ReadRegisterSafe(reg model.Register) (value float64, ok bool) {
	if !e.client.IsConnected() {
		return 0, false
	}

	e.mu.Lock()
	words, err := e.client.ReadHoldingRegisters(reg.Slave, reg.Address, uint16(reg.Words()))
	e.mu.Unlock()

	if err == nil && len(words) < reg.Words() {
		err = errShortBlock
	}
	if err != nil {
		e.log.Debug("safe read failed", zap.String("register", reg.Designator()), zap.Error(err))
		return 0, false
	}

	scale := reg.Scale
	if scale == 0 {
		scale = 1
	}
	raw, v := codec.Decode(words[:reg.Words()], reg.Order, reg.IsFloat(), scale)
	if reg.Expression != "" && !reg.IsFloat() {
		v, err = e.cfg.Scaling.Evaluate(reg.Expression, float64(raw))
		if err != nil {
			e.log.Debug("safe read scaling failed", zap.String("register", reg.Designator()), zap.Error(err))
			return 0, false
		}
	}
	return v, true
}

var ErrRunning = errors.New("poller: engine is running")

// Benchmark reads every planned block n times back to back and reports
// the achieved rate. The engine must be stopped.
func (e *Engine) Benchmark(n int) (BenchmarkResult, error) {
	if e.IsRunning() {
		return BenchmarkResult{}, ErrRunning
	}
	if !e.client.IsConnected() {
		return BenchmarkResult{}, ErrNotConnected
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var res BenchmarkResult
	started := time.Now()

	for i := 0; i < n; i++ {
		for _, p := range e.plans {
			for _, blocks := range [][]ReadBlock{p.fast, p.slow} {
				for _, b := range blocks {
					res.Reads++
					if _, err := e.client.ReadHoldingRegisters(p.slave, b.Address, b.Quantity); err != nil {
						res.Errors++
						if pmodbus.IsFatal(err) {
							res.Duration = time.Since(started)
							return res, err
						}
					}
				}
			}
		}
	}
	res.Duration = time.Since(started)
	return res, nil
}
