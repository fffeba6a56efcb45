// cmd/monitor/main_test.go
package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Normalizes(t *testing.T) {
	path := writeConfig(t, `
connection:
  port: /dev/ttyUSB0
registers:
  - slave: 1
    address: 0
    format: FLOAT32
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig err=%v", err)
	}
	if cfg.Registers[0].Size != 2 || cfg.Connection.BaudRate == 0 {
		t.Fatalf("config not normalized: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
connection:
  port: /dev/ttyUSB0
registers:
  - slave: 300
    address: 0
`)
	_, err := loadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, `
connection:
  port: /dev/ttyUSB0
registers:
  - {slave: 1, address: 0}
  - {slave: 1, address: 1}
  - {slave: 2, address: 0, tier: fast}
`)
	cmd := newValidateCmd()
	cmd.SetArgs([]string{"--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate err=%v", err)
	}
}
