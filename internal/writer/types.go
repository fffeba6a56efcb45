// internal/writer/types.go
package writer

import "errors"

var (
	ErrReadOnly         = errors.New("register is read-only")
	ErrExpressionScaled = errors.New("register uses a scaling expression and cannot be written")
	ErrOutOfRange       = errors.New("value out of range for register size")
)

// Plan is one fully-encoded register write.
type Plan struct {
	Slave   uint8
	Address uint16
	Words   []uint16
}

// Writer delivers plans to the bus.
type Writer interface {
	Write(p Plan) error
}
