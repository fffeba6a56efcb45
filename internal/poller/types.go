// internal/poller/types.go
package poller

import (
	"time"

	"golang.org/x/exp/constraints"

	"github.com/tamzrod/modbus-monitor/internal/model"
)

// ReadBlock is one contiguous holding-register read covering one or
// more registers of a single slave and tier.
type ReadBlock struct {
	Address  uint16
	Quantity uint16
	Members  []*model.Register
}

// devicePlan holds the read blocks of one slave.
type devicePlan struct {
	slave uint8
	fast  []ReadBlock
	slow  []ReadBlock
}

// CycleResult is produced by one poll cycle.
type CycleResult struct {
	At       time.Time
	Duration time.Duration
	Slow     bool // slow tier was read this cycle
	Reads    int  // bus transactions issued
	Errors   int  // registers and variables that failed
	Err      error // non-nil means the cycle aborted and the bus is unusable
}

// Stats are aggregate engine counters.
type Stats struct {
	PollCount    uint64
	ErrorCount   uint64
	Interval     time.Duration
	Running      bool
	LastDuration time.Duration
	LastPoll     time.Time
	// ErrorSince maps a slave to when its registers started failing.
	ErrorSince map[uint8]time.Time
}

// Series is a history window. Offsets are seconds relative to the query
// time (zero or negative), oldest first, paired with Values.
type Series struct {
	Offsets []float64
	Values  []float64
}

// BitValue is a bit definition with its derived state.
type BitValue struct {
	model.Bit
	Value    bool
	HasValue bool
}

// BenchmarkResult reports a raw read-rate measurement.
type BenchmarkResult struct {
	Reads    int
	Errors   int
	Duration time.Duration
}

// PerSecond is the successful read rate.
func (b BenchmarkResult) PerSecond() float64 {
	if b.Duration <= 0 {
		return 0
	}
	return float64(b.Reads-b.Errors) / b.Duration.Seconds()
}

// Observer receives engine notifications. Calls are made from the
// polling goroutine or the caller of a write; implementations must not
// block.
type Observer interface {
	DataUpdated()
	Error(msg string)
	ConnectionLost()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnData           func()
	OnError          func(msg string)
	OnConnectionLost func()
}

func (o ObserverFuncs) DataUpdated() {
	if o.OnData != nil {
		o.OnData()
	}
}

func (o ObserverFuncs) Error(msg string) {
	if o.OnError != nil {
		o.OnError(msg)
	}
}

func (o ObserverFuncs) ConnectionLost() {
	if o.OnConnectionLost != nil {
		o.OnConnectionLost()
	}
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
