// internal/writer/writer.go
package writer

import (
	"errors"
	"fmt"
)

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

type writerImpl struct {
	cli endpointClient
}

func New(cli endpointClient) Writer {
	return &writerImpl{cli: cli}
}

func (w *writerImpl) Write(p Plan) error {
	if w.cli == nil {
		return errors.New("writer: missing client")
	}
	if len(p.Words) == 0 {
		return errors.New("writer: empty plan")
	}
	if err := w.cli.WriteRegisters(p.Slave, p.Address, p.Words); err != nil {
		return fmt.Errorf("writer: unit=%d addr=%d qty=%d: %w", p.Slave, p.Address, len(p.Words), err)
	}
	return nil
}
