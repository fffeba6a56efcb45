// internal/status/snapshot.go
package status

// Snapshot is the state pushed to live clients. It contains no logic and
// no memory of the past beyond current state.
type Snapshot struct {
	At             int64   `json:"at"` // unix milliseconds
	Running        bool    `json:"running"`
	PollCount      uint64  `json:"poll_count"`
	ErrorCount     uint64  `json:"error_count"`
	IntervalMs     int64   `json:"interval_ms"`
	LastDurationMs float64 `json:"last_duration_ms"`

	Devices   []Device   `json:"devices"`
	Registers []Register `json:"registers"`
	Variables []Variable `json:"variables"`
	Bits      []Bit      `json:"bits"`
}

// Device is the health of one slave.
type Device struct {
	Slave          uint8  `json:"slave"`
	Health         uint16 `json:"health"`
	HealthName     string `json:"health_name"`
	LastError      string `json:"last_error,omitempty"`
	SecondsInError uint16 `json:"seconds_in_error"`
}

type Register struct {
	Key      string  `json:"key"`
	Label    string  `json:"label,omitempty"`
	Raw      uint64  `json:"raw"`
	Value    float64 `json:"value"`
	Display  string  `json:"display"`
	Changed  bool    `json:"changed"`
	Writable bool    `json:"writable"`
	Health   uint16  `json:"health"`
	Error    string  `json:"error,omitempty"`
}

type Variable struct {
	Name    string  `json:"name"`
	Label   string  `json:"label,omitempty"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Health  uint16  `json:"health"`
	Error   string  `json:"error,omitempty"`
}

type Bit struct {
	Key   string `json:"key"`
	Name  string `json:"name,omitempty"`
	Label string `json:"label,omitempty"`
	On    bool   `json:"on"`
	Known bool   `json:"known"`
}
