// internal/poller/builder.go
package poller

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/modbus-monitor/internal/config"
	"github.com/tamzrod/modbus-monitor/internal/model"
	pmodbus "github.com/tamzrod/modbus-monitor/internal/poller/modbus"
)

// Definitions converts validated config into model definitions.
func Definitions(c *cfg.Config) ([]model.Register, []model.Variable, []model.Bit, error) {
	regs := make([]model.Register, 0, len(c.Registers))
	for i, r := range c.Registers {
		order, err := model.ParseByteOrder(r.ByteOrder)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
		access, err := model.ParseAccess(r.Access)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
		format, err := model.ParseFormat(r.Format)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
		tier, err := model.ParseTier(r.Tier)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("registers[%d]: %w", i, err)
		}
		regs = append(regs, model.Register{
			Slave:      uint8(r.Slave),
			Address:    uint16(r.Address),
			Size:       r.Size,
			Label:      r.Label,
			Order:      order,
			Scale:      r.Scale,
			Expression: r.Expression,
			Access:     access,
			Format:     format,
			Tier:       tier,
		})
	}

	vars := make([]model.Variable, 0, len(c.Variables))
	for i, v := range c.Variables {
		format, err := model.ParseVariableFormat(v.Format)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("variables[%d]: %w", i, err)
		}
		vars = append(vars, model.Variable{
			Name:       v.Name,
			Label:      v.Label,
			Expression: v.Expression,
			Format:     format,
		})
	}

	bits := make([]model.Bit, 0, len(c.Bits))
	for _, b := range c.Bits {
		bits = append(bits, model.Bit{
			Name:    b.Name,
			Slave:   uint8(b.Slave),
			Address: uint16(b.Address),
			Index:   uint8(b.Index),
			Label:   b.Label,
		})
	}
	return regs, vars, bits, nil
}

// BuildEngine wires a validated, normalized config onto client.
func BuildEngine(c *cfg.Config, client Client, log *zap.Logger) (*Engine, error) {
	regs, vars, bits, err := Definitions(c)
	if err != nil {
		return nil, err
	}

	e, err := New(Config{
		Interval: time.Duration(c.Poll.IntervalMs) * time.Millisecond,
		History:  time.Duration(c.Poll.HistorySeconds) * time.Second,
		Logger:   log,
	}, client)
	if err != nil {
		return nil, err
	}

	slaves := make([]uint8, 0, len(c.Slaves))
	for _, id := range c.Slaves {
		slaves = append(slaves, uint8(id))
	}

	e.SetSlaves(slaves)
	e.SetRegisters(regs)
	e.SetVariables(vars)
	e.SetBits(bits)
	return e, nil
}

// TransportConfig maps the serial section of the config.
func TransportConfig(c *cfg.Config) pmodbus.Config {
	settle := cfg.DefaultSettleMs
	if c.Connection.SettleMs != nil {
		settle = *c.Connection.SettleMs
	}
	return pmodbus.Config{
		Port:     c.Connection.Port,
		BaudRate: c.Connection.BaudRate,
		DataBits: c.Connection.DataBits,
		Parity:   c.Connection.Parity,
		StopBits: c.Connection.StopBits,
		Timeout:  time.Duration(c.Connection.TimeoutMs) * time.Millisecond,
		Settle:   time.Duration(settle) * time.Millisecond,
	}
}

// Build opens the serial port and constructs the engine. The returned
// closer stops the engine and releases the port.
func Build(c *cfg.Config, log *zap.Logger) (*Engine, func() error, error) {
	client, err := pmodbus.New(TransportConfig(c))
	if err != nil {
		return nil, nil, err
	}

	e, err := BuildEngine(c, client, log)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	closer := func() error {
		e.Stop()
		return client.Close()
	}
	return e, closer, nil
}
