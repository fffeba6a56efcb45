// internal/config/normalize.go
package config

import (
	"strings"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

const (
	DefaultBaudRate       = 9600
	DefaultDataBits       = 8
	DefaultParity         = "N"
	DefaultStopBits       = 1
	DefaultTimeoutMs      = 1000
	DefaultSettleMs       = 10
	DefaultIntervalMs     = 100
	DefaultHistorySeconds = 300
	DefaultRecorderPath   = "monitor.db"
	DefaultRecorderMs     = 1000
	DefaultLogLevel       = "info"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	c := &cfg.Connection
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = DefaultDataBits
	}
	c.Parity = strings.ToUpper(c.Parity)
	if c.Parity == "" {
		c.Parity = DefaultParity
	}
	if c.StopBits == 0 {
		c.StopBits = DefaultStopBits
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.SettleMs == nil {
		settle := DefaultSettleMs
		c.SettleMs = &settle
	}

	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = DefaultIntervalMs
	}
	if cfg.Poll.HistorySeconds == 0 {
		cfg.Poll.HistorySeconds = DefaultHistorySeconds
	}

	for i := range cfg.Registers {
		r := &cfg.Registers[i]
		if r.Size == 0 {
			r.Size = 1
			if f, _ := model.ParseFormat(r.Format); f == model.FormatFloat32 {
				r.Size = 2
			}
		}
		if r.Scale == 0 {
			r.Scale = 1
		}
		r.ByteOrder = strings.ToLower(strings.TrimSpace(r.ByteOrder))
		r.Access = strings.ToLower(strings.TrimSpace(r.Access))
		r.Format = strings.ToLower(strings.TrimSpace(r.Format))
		r.Tier = strings.ToLower(strings.TrimSpace(r.Tier))
	}

	for i := range cfg.Variables {
		cfg.Variables[i].Name = strings.TrimSpace(cfg.Variables[i].Name)
	}

	if cfg.Recorder.Path == "" {
		cfg.Recorder.Path = DefaultRecorderPath
	}
	if cfg.Recorder.IntervalMs == 0 {
		cfg.Recorder.IntervalMs = DefaultRecorderMs
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}
