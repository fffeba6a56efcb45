// internal/poller/modbus/client.go
package modbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/pkg/errors"
)

// Config is the serial line configuration.
type Config struct {
	Port     string
	BaudRate int
	DataBits int
	Parity   string // N, E or O
	StopBits int
	Timeout  time.Duration
	Settle   time.Duration // pause after switching slave id
}

// Client implements poller.Client over Modbus RTU.
// One handler serves every slave on the bus; requests are serialized
// because the slave id is mutated per request.
type Client struct {
	mu        sync.Mutex
	cfg       Config
	handler   *modbus.RTUClientHandler
	client    modbus.Client
	slave     uint8
	connected bool
	sleep     func(time.Duration)
}

func newHandler(cfg Config) *modbus.RTUClientHandler {
	h := modbus.NewRTUClientHandler(cfg.Port)
	h.BaudRate = cfg.BaudRate
	h.DataBits = cfg.DataBits
	h.Parity = cfg.Parity
	h.StopBits = cfg.StopBits
	h.Timeout = cfg.Timeout
	// The engine owns the port for its whole lifetime.
	h.IdleTimeout = 0
	return h
}

// New opens the serial port.
func New(cfg Config) (*Client, error) {
	if cfg.Port == "" {
		return nil, errors.New("modbus client: port required")
	}

	h := newHandler(cfg)
	if err := h.Connect(); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "open " + cfg.Port, Err: errors.Wrap(err, "connect")}
	}

	return &Client{
		cfg:       cfg,
		handler:   h,
		client:    modbus.NewClient(h),
		connected: true,
		sleep:     time.Sleep,
	}, nil
}

// Close releases the port. Further I/O fails with ErrPortClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	return c.handler.Close()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// selectSlave must be called with mu held.
func (c *Client) selectSlave(slave uint8) {
	if c.slave == slave {
		return
	}
	c.handler.SlaveId = slave
	c.slave = slave
	if c.cfg.Settle > 0 {
		c.sleep(c.cfg.Settle)
	}
}

// ---- poller.Client interface ----

func (c *Client) ReadHoldingRegisters(slave uint8, addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := fmt.Sprintf("read D%d.R%d+%d", slave, addr, qty)
	if !c.connected {
		return nil, &Error{Kind: KindFatal, Op: op, Err: ErrPortClosed}
	}
	c.selectSlave(slave)

	b, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, c.fail(op, err)
	}
	regs := unpackRegisters(b)
	if len(regs) != int(qty) {
		return nil, &Error{
			Kind: KindProtocol,
			Op:   op,
			Err:  errors.Errorf("short response: got %d registers", len(regs)),
		}
	}
	return regs, nil
}

func (c *Client) WriteRegisters(slave uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := fmt.Sprintf("write D%d.R%d+%d", slave, addr, len(regs))
	if !c.connected {
		return &Error{Kind: KindFatal, Op: op, Err: ErrPortClosed}
	}
	if len(regs) == 0 {
		return nil
	}
	c.selectSlave(slave)

	var err error
	if len(regs) == 1 {
		_, err = c.client.WriteSingleRegister(addr, regs[0])
	} else {
		_, err = c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	}
	return c.fail(op, err)
}

// fail classifies err and marks the client disconnected on fatal errors.
func (c *Client) fail(op string, err error) error {
	err = wrap(op, err)
	if err != nil && KindOf(err) == KindFatal {
		c.connected = false
		_ = c.handler.Close()
	}
	return err
}

// ---- helpers (pure geometry) ----

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
