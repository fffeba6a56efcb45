// internal/poller/poller.go
package poller

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-monitor/internal/codec"
	"github.com/tamzrod/modbus-monitor/internal/expr"
	"github.com/tamzrod/modbus-monitor/internal/model"
	pmodbus "github.com/tamzrod/modbus-monitor/internal/poller/modbus"
)

// Client abstracts the serial bus. The engine depends on geometry only.
type Client interface {
	ReadHoldingRegisters(slave uint8, addr, qty uint16) ([]uint16, error) // FC 3
	WriteRegisters(slave uint8, addr uint16, regs []uint16) error         // FC 6 / FC 16
	IsConnected() bool
}

const (
	DefaultInterval       = 100 * time.Millisecond
	MinInterval           = time.Millisecond
	MaxInterval           = time.Minute
	SlowInterval          = 500 * time.Millisecond
	DefaultHistory        = 300 * time.Second
	DefaultNotifyInterval = time.Second / 30
	DefaultTurnaround     = 5 * time.Millisecond
	StopTimeout           = time.Second
)

var ErrNotConnected = errors.New("poller: not connected")

// Config is the runtime config the engine needs. Zero fields take defaults.
type Config struct {
	Interval       time.Duration // fast tier period
	SlowInterval   time.Duration
	History        time.Duration // retention window
	NotifyInterval time.Duration // minimum spacing of DataUpdated
	Turnaround     time.Duration // pause after every cycle

	Logger    *zap.Logger
	Clock     func() time.Time
	Scaling   *expr.Scaling
	Variables *expr.Variables
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	c.Interval = clamp(c.Interval, MinInterval, MaxInterval)
	if c.SlowInterval <= 0 {
		c.SlowInterval = SlowInterval
	}
	if c.History <= 0 {
		c.History = DefaultHistory
	}
	if c.NotifyInterval <= 0 {
		c.NotifyInterval = DefaultNotifyInterval
	}
	if c.Turnaround < 0 {
		c.Turnaround = 0
	} else if c.Turnaround == 0 {
		c.Turnaround = DefaultTurnaround
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Scaling == nil {
		c.Scaling = expr.NewScaling()
	}
	if c.Variables == nil {
		c.Variables = expr.NewVariables()
	}
	return c
}

// Engine polls registers from every slave on one bus.
//
// mu is the single engine lock. It guards definitions, plans, history,
// counters and every transport call, so polls, writes and ad hoc reads
// never interleave on the wire.
type Engine struct {
	cfg    Config
	client Client
	log    *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	registers  []*model.Register
	index      map[model.Key]*model.Register
	variables  []*model.Variable
	bits       []model.Bit
	slaves     []uint8
	plans      []devicePlan
	hist       *history
	interval   time.Duration
	lastSlow   time.Time
	pollCount  uint64
	errorCount uint64
	lastDur    time.Duration
	lastPoll   time.Time
	errSince   map[uint8]time.Time

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int

	runMu   sync.Mutex
	running atomic.Bool
	lost    atomic.Bool
	gen     uint64 // current run, guarded by runMu
	cancel  func()
	done    chan struct{}
}

// New creates a stopped engine with no definitions.
func New(cfg Config, client Client) (*Engine, error) {
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	cfg = cfg.withDefaults()

	return &Engine{
		cfg:       cfg,
		client:    client,
		log:       cfg.Logger,
		now:       cfg.Clock,
		index:     make(map[model.Key]*model.Register),
		hist:      newHistory(cfg.History),
		interval:  cfg.Interval,
		errSince:  make(map[uint8]time.Time),
		observers: make(map[int]Observer),
	}, nil
}

// ---- definitions ----

// SetRegisters replaces the register set. Runtime state carries over for
// registers whose key survives. A duplicate key keeps the first definition.
func (e *Engine) SetRegisters(defs []model.Register) {
	e.mu.Lock()
	defer e.mu.Unlock()

	regs := make([]*model.Register, 0, len(defs))
	index := make(map[model.Key]*model.Register, len(defs))

	for i := range defs {
		d := defs[i].Definition()
		k := d.Key()
		if _, dup := index[k]; dup {
			e.log.Warn("duplicate register ignored", zap.String("register", k.String()))
			continue
		}
		r := &d
		if old, ok := e.index[k]; ok {
			r.Raw, r.Value, r.Previous = old.Raw, old.Value, old.Previous
			r.HasValue, r.HasPrevious, r.Err = old.HasValue, old.HasPrevious, old.Err
		}
		regs = append(regs, r)
		index[k] = r
	}

	e.registers = regs
	e.index = index
	e.plans = buildPlans(e.registers, e.slaves)
}

// SetVariables replaces the variable set.
func (e *Engine) SetVariables(defs []model.Variable) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vars := make([]*model.Variable, 0, len(defs))
	for i := range defs {
		v := defs[i].Definition()
		vars = append(vars, &v)
	}
	e.variables = vars
}

func (e *Engine) SetBits(bits []model.Bit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bits = append([]model.Bit(nil), bits...)
}

// SetSlaves restricts polling to ids. Empty polls every slave that owns
// a register.
func (e *Engine) SetSlaves(ids []uint8) {
	seen := make(map[uint8]bool, len(ids))
	var out []uint8
	for _, id := range ids {
		if id < model.MinSlaveID || id > model.MaxSlaveID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	e.mu.Lock()
	defer e.mu.Unlock()
	e.slaves = out
	e.plans = buildPlans(e.registers, e.slaves)
}

// Slaves returns the configured slave filter. Empty means all.
func (e *Engine) Slaves() []uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint8(nil), e.slaves...)
}

// SetInterval changes the fast tier period, clamped to [MinInterval, MaxInterval].
func (e *Engine) SetInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interval = clamp(d, MinInterval, MaxInterval)
}

func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// ---- one cycle ----

// PollOnce performs exactly one poll cycle. Per-register and variable
// failures are recorded on the definitions; only a fatal transport error
// aborts the cycle and is returned in Err.
func (e *Engine) PollOnce() CycleResult {
	if !e.client.IsConnected() {
		return CycleResult{At: e.now(), Err: ErrNotConnected}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	started := time.Now()
	now := e.now()
	res := CycleResult{At: now}

	e.pollCount++
	e.lastPoll = now

	if e.lastSlow.IsZero() || now.Sub(e.lastSlow) >= e.cfg.SlowInterval {
		res.Slow = true
		e.lastSlow = now
	}

	for _, p := range e.plans {
		if err := e.readBlocks(p.slave, p.fast, now, &res); err != nil {
			return e.abort(res, err, started)
		}
		if res.Slow {
			if err := e.readBlocks(p.slave, p.slow, now, &res); err != nil {
				return e.abort(res, err, started)
			}
		}
	}

	e.evaluateVariables(now, &res)
	e.trackDeviceErrors(now)

	res.Duration = time.Since(started)
	e.lastDur = res.Duration
	return res
}

func (e *Engine) abort(res CycleResult, err error, started time.Time) CycleResult {
	res.Err = err
	res.Duration = time.Since(started)
	e.errorCount++
	e.lastDur = res.Duration
	return res
}

// readBlocks reads blocks of one slave. Only a fatal error is returned.
// Caller must hold mu.
func (e *Engine) readBlocks(slave uint8, blocks []ReadBlock, now time.Time, res *CycleResult) error {
	for _, b := range blocks {
		res.Reads++
		words, err := e.client.ReadHoldingRegisters(slave, b.Address, b.Quantity)
		if err == nil {
			e.decodeBlock(b, words, now, res)
			continue
		}
		if pmodbus.IsFatal(err) {
			return err
		}

		if b.Quantity == 1 {
			e.failMembers(b.Members, err, res)
			continue
		}

		// One bad address must not blank the block.
		e.log.Debug("block read failed, reading registers individually",
			zap.Uint8("slave", slave),
			zap.Uint16("address", b.Address),
			zap.Uint16("quantity", b.Quantity),
			zap.Error(err))

		for _, r := range b.Members {
			res.Reads++
			words, err := e.client.ReadHoldingRegisters(slave, r.Address, uint16(r.Words()))
			if err != nil {
				if pmodbus.IsFatal(err) {
					return err
				}
				e.failMembers([]*model.Register{r}, err, res)
				continue
			}
			e.decode(r, words, now, res)
		}
	}
	return nil
}

func (e *Engine) failMembers(regs []*model.Register, err error, res *CycleResult) {
	for _, r := range regs {
		r.Fail(err)
		res.Errors++
		e.errorCount++
		e.log.Debug("register read failed", zap.String("register", r.Designator()), zap.Error(err))
	}
}

func (e *Engine) decodeBlock(b ReadBlock, words []uint16, now time.Time, res *CycleResult) {
	for _, r := range b.Members {
		off := int(r.Address) - int(b.Address)
		if off < 0 || off+r.Words() > len(words) {
			e.failMembers([]*model.Register{r}, errShortBlock, res)
			continue
		}
		e.decode(r, words[off:off+r.Words()], now, res)
	}
}

var errShortBlock = errors.New("response shorter than register span")

// decode updates r from its words and appends to history.
func (e *Engine) decode(r *model.Register, words []uint16, now time.Time, res *CycleResult) {
	scale := r.Scale
	if scale == 0 {
		scale = 1
	}
	raw, value := codec.Decode(words, r.Order, r.IsFloat(), scale)

	if r.Expression != "" && !r.IsFloat() {
		v, err := e.cfg.Scaling.Evaluate(r.Expression, float64(raw))
		if err != nil {
			e.failMembers([]*model.Register{r}, err, res)
			return
		}
		value = v
	}

	r.Update(raw, value)
	e.hist.append(r.Designator(), now, value)
}

// registerTable resolves variable references against the live registers.
type registerTable map[model.Key]*model.Register

func (t registerTable) Lookup(k model.Key) (float64, bool) {
	r, ok := t[k]
	if !ok || !r.HasValue {
		return 0, false
	}
	return r.Value, true
}

// evaluateVariables runs after every register read of the cycle.
// A failed variable is cleared and keeps its error.
func (e *Engine) evaluateVariables(now time.Time, res *CycleResult) {
	table := registerTable(e.index)
	for _, v := range e.variables {
		value, err := e.cfg.Variables.Evaluate(v.Expression, table)
		if err != nil {
			v.Stale(err)
			res.Errors++
			e.errorCount++
			continue
		}
		v.Set(value)
		e.hist.append(v.Name, now, value)
	}
}

// trackDeviceErrors records when each slave's registers started failing.
func (e *Engine) trackDeviceErrors(now time.Time) {
	failing := make(map[uint8]bool)
	for _, r := range e.registers {
		if r.Err != "" {
			failing[r.Slave] = true
		}
	}
	for s := range e.errSince {
		if !failing[s] {
			delete(e.errSince, s)
		}
	}
	for s := range failing {
		if _, ok := e.errSince[s]; !ok {
			e.errSince[s] = now
		}
	}
}

// ---- queries ----

// Registers returns copies of the registers with their runtime state.
func (e *Engine) Registers() []model.Register {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Register, len(e.registers))
	for i, r := range e.registers {
		out[i] = *r
	}
	return out
}

func (e *Engine) Variables() []model.Variable {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Variable, len(e.variables))
	for i, v := range e.variables {
		out[i] = *v
	}
	return out
}

// Bits derives bit values from the owning registers' raw values.
func (e *Engine) Bits() []BitValue {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]BitValue, len(e.bits))
	for i, b := range e.bits {
		out[i] = BitValue{Bit: b}
		if r, ok := e.index[b.Key()]; ok && r.HasValue {
			out[i].Value = b.Extract(r.Raw)
			out[i].HasValue = true
		}
	}
	return out
}

// History returns the samples of key (a designator or variable name)
// within window of now.
func (e *Engine) History(key string, window time.Duration) Series {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.query(key, e.now(), window)
}

func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.clear()
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	since := make(map[uint8]time.Time, len(e.errSince))
	for k, v := range e.errSince {
		since[k] = v
	}
	return Stats{
		PollCount:    e.pollCount,
		ErrorCount:   e.errorCount,
		Interval:     e.interval,
		Running:      e.running.Load(),
		LastDuration: e.lastDur,
		LastPoll:     e.lastPoll,
		ErrorSince:   since,
	}
}

// ---- observers ----

// Subscribe registers o and returns a function that removes it.
func (e *Engine) Subscribe(o Observer) func() {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()

	id := e.nextObs
	e.nextObs++
	e.observers[id] = o

	return func() {
		e.obsMu.Lock()
		delete(e.observers, id)
		e.obsMu.Unlock()
	}
}

func (e *Engine) snapshotObservers() []Observer {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()

	out := make([]Observer, 0, len(e.observers))
	for _, o := range e.observers {
		out = append(out, o)
	}
	return out
}

func (e *Engine) notifyData() {
	for _, o := range e.snapshotObservers() {
		o.DataUpdated()
	}
}

func (e *Engine) notifyError(msg string) {
	for _, o := range e.snapshotObservers() {
		o.Error(msg)
	}
}

func (e *Engine) notifyConnectionLost() {
	for _, o := range e.snapshotObservers() {
		o.ConnectionLost()
	}
}
