// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-monitor/internal/expr"
	"github.com/tamzrod/modbus-monitor/internal/model"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// SERIAL LINE
	// ------------------------------------------------------------

	c := cfg.Connection
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("connection.port is required")
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("connection.baud_rate must be > 0, got %d", c.BaudRate)
	}
	if c.DataBits != 0 && (c.DataBits < 5 || c.DataBits > 8) {
		return fmt.Errorf("connection.data_bits must be 5..8, got %d", c.DataBits)
	}
	switch strings.ToUpper(c.Parity) {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("connection.parity must be N, E or O, got %q", c.Parity)
	}
	if c.StopBits != 0 && c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("connection.stop_bits must be 1 or 2, got %d", c.StopBits)
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("connection.timeout_ms must be >= 0")
	}
	if c.SettleMs != nil && *c.SettleMs < 0 {
		return fmt.Errorf("connection.settle_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	if cfg.Poll.IntervalMs < 0 {
		return fmt.Errorf("poll.interval_ms must be >= 1")
	}
	if cfg.Poll.HistorySeconds < 0 {
		return fmt.Errorf("poll.history_seconds must be >= 0")
	}

	seenSlave := make(map[int]bool)
	for _, id := range cfg.Slaves {
		if !validSlave(id) {
			return fmt.Errorf("slaves: id %d out of range %d..%d", id, model.MinSlaveID, model.MaxSlaveID)
		}
		if seenSlave[id] {
			return fmt.Errorf("slaves: duplicate id %d", id)
		}
		seenSlave[id] = true
	}

	// ------------------------------------------------------------
	// REGISTERS
	// ------------------------------------------------------------

	scaling := expr.NewScaling()

	type key struct{ slave, addr int }
	owner := make(map[key]int)

	for i, r := range cfg.Registers {
		where := fmt.Sprintf("registers[%d] (D%d.R%d)", i, r.Slave, r.Address)

		if !validSlave(r.Slave) {
			return fmt.Errorf("%s: slave out of range %d..%d", where, model.MinSlaveID, model.MaxSlaveID)
		}
		if r.Address < 0 || r.Address > 0xFFFF {
			return fmt.Errorf("%s: address out of range 0..65535", where)
		}
		if r.Size < 0 || r.Size > model.MaxSize {
			return fmt.Errorf("%s: size must be 1..%d", where, model.MaxSize)
		}
		size := r.Size
		if size == 0 {
			size = 1
		}

		if _, err := model.ParseByteOrder(r.ByteOrder); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if _, err := model.ParseAccess(r.Access); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if _, err := model.ParseTier(r.Tier); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		format, err := model.ParseFormat(r.Format)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if format == model.FormatFloat32 {
			if r.Size != 0 && r.Size != 2 {
				return fmt.Errorf("%s: float32 requires size 2", where)
			}
			size = 2
		}
		if r.Address+size > 0x10000 {
			return fmt.Errorf("%s: register runs past address 65535", where)
		}

		if r.Expression != "" {
			if err := scaling.Validate(r.Expression); err != nil {
				return fmt.Errorf("%s: expression: %w", where, err)
			}
		}

		k := key{r.Slave, r.Address}
		if prev, exists := owner[k]; exists {
			return fmt.Errorf("%s: duplicate of registers[%d]", where, prev)
		}
		owner[k] = i
	}

	// ------------------------------------------------------------
	// VARIABLES
	// ------------------------------------------------------------

	variables := expr.NewVariables()
	names := make(map[string]bool)

	for i, v := range cfg.Variables {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return fmt.Errorf("variables[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("variables[%d]: duplicate name %q", i, name)
		}
		names[name] = true

		if _, err := model.ParseVariableFormat(v.Format); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		if err := variables.Validate(v.Expression); err != nil {
			return fmt.Errorf("variable %q: expression: %w", name, err)
		}
	}

	// ------------------------------------------------------------
	// BITS
	// ------------------------------------------------------------

	for i, b := range cfg.Bits {
		if !validSlave(b.Slave) {
			return fmt.Errorf("bits[%d]: slave out of range", i)
		}
		if b.Address < 0 || b.Address > 0xFFFF {
			return fmt.Errorf("bits[%d]: address out of range 0..65535", i)
		}
		if b.Index < 0 || b.Index > 15 {
			return fmt.Errorf("bits[%d]: index must be 0..15, got %d", i, b.Index)
		}
	}

	// ------------------------------------------------------------
	// OUTER SURFACES
	// ------------------------------------------------------------

	if cfg.Recorder.Enabled && strings.TrimSpace(cfg.Recorder.Path) == "" {
		return fmt.Errorf("recorder.path is required when recorder is enabled")
	}
	if cfg.Recorder.IntervalMs < 0 {
		return fmt.Errorf("recorder.interval_ms must be >= 0")
	}
	if cfg.Recorder.RetentionHours < 0 {
		return fmt.Errorf("recorder.retention_hours must be >= 0")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}

	return nil
}

func validSlave(id int) bool {
	return id >= model.MinSlaveID && id <= model.MaxSlaveID
}
