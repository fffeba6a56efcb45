// internal/config/config.go
package config

type Config struct {
	Connection ConnectionConfig `yaml:"connection" toml:"connection"`
	Slaves     []int            `yaml:"slaves" toml:"slaves"` // empty = every slave that owns a register
	Poll       PollConfig       `yaml:"poll" toml:"poll"`
	Registers  []RegisterConfig `yaml:"registers" toml:"registers"`
	Variables  []VariableConfig `yaml:"variables" toml:"variables"`
	Bits       []BitConfig      `yaml:"bits" toml:"bits"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Recorder   RecorderConfig   `yaml:"recorder" toml:"recorder"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ---- SERIAL LINE ----

type ConnectionConfig struct {
	Port      string `yaml:"port" toml:"port"`
	BaudRate  int    `yaml:"baud_rate" toml:"baud_rate"`
	DataBits  int    `yaml:"data_bits" toml:"data_bits"`
	Parity    string `yaml:"parity" toml:"parity"` // N, E, O
	StopBits  int    `yaml:"stop_bits" toml:"stop_bits"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
	SettleMs  *int   `yaml:"settle_ms" toml:"settle_ms"` // nil = default, 0 = no settle
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs     int `yaml:"interval_ms" toml:"interval_ms"`
	HistorySeconds int `yaml:"history_seconds" toml:"history_seconds"`
}

// ---- DEFINITIONS ----

type RegisterConfig struct {
	Slave      int     `yaml:"slave" toml:"slave"`
	Address    int     `yaml:"address" toml:"address"`
	Size       int     `yaml:"size" toml:"size"`
	Label      string  `yaml:"label" toml:"label"`
	ByteOrder  string  `yaml:"byte_order" toml:"byte_order"`
	Scale      float64 `yaml:"scale" toml:"scale"` // 0 = 1.0
	Expression string  `yaml:"expression" toml:"expression"`
	Access     string  `yaml:"access" toml:"access"`
	Format     string  `yaml:"format" toml:"format"`
	Tier       string  `yaml:"tier" toml:"tier"`
}

type VariableConfig struct {
	Name       string `yaml:"name" toml:"name"`
	Label      string `yaml:"label" toml:"label"`
	Expression string `yaml:"expression" toml:"expression"`
	Format     string `yaml:"format" toml:"format"`
}

type BitConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Slave   int    `yaml:"slave" toml:"slave"`
	Address int    `yaml:"address" toml:"address"`
	Index   int    `yaml:"index" toml:"index"`
	Label   string `yaml:"label" toml:"label"`
}

// ---- OUTER SURFACES ----

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"` // empty = disabled
}

type RecorderConfig struct {
	Enabled        bool   `yaml:"enabled" toml:"enabled"`
	Path           string `yaml:"path" toml:"path"`
	IntervalMs     int    `yaml:"interval_ms" toml:"interval_ms"`         // sampling period
	RetentionHours int    `yaml:"retention_hours" toml:"retention_hours"` // 0 keeps everything
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}
