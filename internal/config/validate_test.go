// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to build a minimal valid config quickly
func base(regs ...RegisterConfig) *Config {
	return &Config{
		Connection: ConnectionConfig{Port: "/dev/ttyUSB0"},
		Registers:  regs,
	}
}

func reg(slave, addr int) RegisterConfig {
	return RegisterConfig{Slave: slave, Address: addr}
}

// ---- tests ----

func TestValidate_Minimal(t *testing.T) {
	if err := Validate(base(reg(1, 0), reg(1, 1), reg(2, 0))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SameAddressDifferentSlaves(t *testing.T) {
	if err := Validate(base(reg(1, 10), reg(2, 10))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DuplicateRegister(t *testing.T) {
	err := Validate(base(reg(1, 10), reg(1, 10)))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		mut  func(c *Config)
		want string
	}{
		{"no port", func(c *Config) { c.Connection.Port = "" }, "port"},
		{"parity", func(c *Config) { c.Connection.Parity = "X" }, "parity"},
		{"stop bits", func(c *Config) { c.Connection.StopBits = 3 }, "stop_bits"},
		{"slave zero", func(c *Config) { c.Registers[0].Slave = 0 }, "slave"},
		{"slave 248", func(c *Config) { c.Registers[0].Slave = 248 }, "slave"},
		{"address", func(c *Config) { c.Registers[0].Address = 70000 }, "address"},
		{"size", func(c *Config) { c.Registers[0].Size = 5 }, "size"},
		{"past end", func(c *Config) { c.Registers[0].Address = 65535; c.Registers[0].Size = 2 }, "65535"},
		{"float size", func(c *Config) { c.Registers[0].Format = "float32"; c.Registers[0].Size = 1 }, "float32"},
		{"byte order", func(c *Config) { c.Registers[0].ByteOrder = "middle" }, "byte order"},
		{"tier", func(c *Config) { c.Registers[0].Tier = "turbo" }, "tier"},
		{"scaling expression", func(c *Config) { c.Registers[0].Expression = "value / 0" }, "expression"},
		{"placeholder divisor", func(c *Config) { c.Registers[0].Expression = "100 / (value - 1)" }, "math domain error"},
		{"reference in scaling", func(c *Config) { c.Registers[0].Expression = "D1.R0 * 2" }, "unknown symbol"},
		{"slave list", func(c *Config) { c.Slaves = []int{1, 1} }, "duplicate"},
		{"variable name", func(c *Config) { c.Variables = []VariableConfig{{Expression: "R0"}} }, "name"},
		{"variable expr", func(c *Config) {
			c.Variables = []VariableConfig{{Name: "v", Expression: "foo(R0)"}}
		}, "unknown symbol"},
		{"variable dup", func(c *Config) {
			c.Variables = []VariableConfig{{Name: "v", Expression: "R0"}, {Name: "v", Expression: "R1"}}
		}, "duplicate"},
		{"bit index", func(c *Config) { c.Bits = []BitConfig{{Slave: 1, Index: 16}} }, "index"},
		{"recorder", func(c *Config) { c.Recorder.Enabled = true }, "recorder.path"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := base(reg(1, 0))
			c.mut(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("expected error containing %q, got %v", c.want, err)
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := base(reg(1, 0))
	_ = Validate(cfg)
	if cfg.Registers[0].Size != 0 || cfg.Registers[0].Scale != 0 || cfg.Connection.BaudRate != 0 {
		t.Fatalf("Validate mutated config: %+v", cfg)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := base(reg(1, 0), RegisterConfig{Slave: 1, Address: 2, Format: "FLOAT32"})
	Normalize(cfg)

	if cfg.Connection.BaudRate != DefaultBaudRate || cfg.Connection.Parity != "N" {
		t.Fatalf("connection defaults not applied: %+v", cfg.Connection)
	}
	if cfg.Connection.SettleMs == nil || *cfg.Connection.SettleMs != DefaultSettleMs {
		t.Fatalf("settle default not applied")
	}
	if cfg.Poll.IntervalMs != DefaultIntervalMs || cfg.Poll.HistorySeconds != DefaultHistorySeconds {
		t.Fatalf("poll defaults not applied: %+v", cfg.Poll)
	}
	if cfg.Registers[0].Size != 1 || cfg.Registers[0].Scale != 1 {
		t.Fatalf("register defaults not applied: %+v", cfg.Registers[0])
	}
	if cfg.Registers[1].Size != 2 || cfg.Registers[1].Format != "float32" {
		t.Fatalf("float32 register not normalized: %+v", cfg.Registers[1])
	}
}

func TestNormalize_KeepsExplicitZeroSettle(t *testing.T) {
	zero := 0
	cfg := base()
	cfg.Connection.SettleMs = &zero
	Normalize(cfg)
	if *cfg.Connection.SettleMs != 0 {
		t.Fatalf("explicit zero settle overwritten")
	}
}

func TestLoad_YAMLAndTOML(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "monitor.yaml")
	yamlDoc := `
connection:
  port: /dev/ttyUSB0
  baud_rate: 19200
registers:
  - slave: 1
    address: 0
    tier: fast
variables:
  - name: total
    expression: D1.R0 * 2
`
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	tomlPath := filepath.Join(dir, "monitor.toml")
	tomlDoc := `
[connection]
port = "/dev/ttyUSB0"
baud_rate = 19200

[[registers]]
slave = 1
address = 0
tier = "fast"

[[variables]]
name = "total"
expression = "D1.R0 * 2"
`
	if err := os.WriteFile(tomlPath, []byte(tomlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{yamlPath, tomlPath} {
		cfg, err := Load(p)
		if err != nil {
			t.Fatalf("%s: load: %v", p, err)
		}
		if cfg.Connection.BaudRate != 19200 || len(cfg.Registers) != 1 || cfg.Variables[0].Name != "total" {
			t.Fatalf("%s: unexpected config %+v", p, cfg)
		}
		if err := Validate(cfg); err != nil {
			t.Fatalf("%s: validate: %v", p, err)
		}
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("connection:\n  prot: COM1\n"), false); err == nil {
		t.Fatalf("expected unknown yaml key error")
	}
	if _, err := Parse([]byte("[connection]\nprot = \"COM1\"\n"), true); err == nil {
		t.Fatalf("expected unknown toml key error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	if err := os.WriteFile(path, []byte("connection:\n  port: COM1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MONITOR_PORT", "/dev/ttyS1")
	t.Setenv("MONITOR_BAUD", "38400")
	t.Setenv("MONITOR_INTERVAL_MS", "50")
	t.Setenv("MONITOR_LISTEN", ":9090")
	t.Setenv("MONITOR_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Connection.Port != "/dev/ttyS1" || cfg.Connection.BaudRate != 38400 ||
		cfg.Poll.IntervalMs != 50 || cfg.Server.ListenAddr != ":9090" || cfg.Logging.Level != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	t.Setenv("MONITOR_BAUD", "fast")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected bad MONITOR_BAUD error")
	}
}
