// internal/poller/modbus/probe.go
package modbus

import (
	"context"
	"errors"
	"time"

	"github.com/goburrow/modbus"
)

// DefaultProbeTimeout bounds each probe request.
const DefaultProbeTimeout = 200 * time.Millisecond

// ProbeResult is the outcome of probing one slave id.
type ProbeResult struct {
	Slave     uint8
	Responded bool
	Exception bool // answered with a Modbus exception
	Err       error
}

// prober is the read capability probing needs.
type prober interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// probeOne reads one register. Any well-formed answer, including an
// exception response, proves the slave is present.
func probeOne(c prober, slave uint8, address uint16) ProbeResult {
	res := ProbeResult{Slave: slave}
	_, err := c.ReadHoldingRegisters(address, 1)
	if err == nil {
		res.Responded = true
		return res
	}
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		res.Responded = true
		res.Exception = true
		return res
	}
	res.Err = wrap("probe", err)
	return res
}

// Probe opens a dedicated handler and reports whether slave answers a
// read of address. It must not be used while an engine owns the port.
func Probe(cfg Config, slave uint8, address uint16) (ProbeResult, error) {
	results, err := Scan(context.Background(), cfg, []uint8{slave}, address, nil)
	if err != nil {
		return ProbeResult{Slave: slave}, err
	}
	return results[0], nil
}

// Scan probes each id in order on one handler. progress, if set, is
// called after each id. A fatal transport error aborts the scan.
func Scan(ctx context.Context, cfg Config, ids []uint8, address uint16, progress func(ProbeResult)) ([]ProbeResult, error) {
	if cfg.Timeout <= 0 || cfg.Timeout > DefaultProbeTimeout {
		cfg.Timeout = DefaultProbeTimeout
	}
	h := newHandler(cfg)
	if err := h.Connect(); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "open " + cfg.Port, Err: err}
	}
	defer h.Close()

	client := modbus.NewClient(h)
	out := make([]ProbeResult, 0, len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		h.SlaveId = id
		if cfg.Settle > 0 {
			time.Sleep(cfg.Settle)
		}
		r := probeOne(client, id, address)
		out = append(out, r)
		if progress != nil {
			progress(r)
		}
		if IsFatal(r.Err) {
			return out, r.Err
		}
	}
	return out, nil
}

// SlaveRange returns ids lo..hi clamped to 1..247.
func SlaveRange(lo, hi int) []uint8 {
	if lo < 1 {
		lo = 1
	}
	if hi > 247 {
		hi = 247
	}
	var ids []uint8
	for i := lo; i <= hi; i++ {
		ids = append(ids, uint8(i))
	}
	return ids
}
