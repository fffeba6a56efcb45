// internal/poller/modbus/errors.go
package modbus

import (
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"
)

// Kind classifies a transport failure.
type Kind int

const (
	KindIO Kind = iota
	KindTimeout
	KindProtocol
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindFatal:
		return "fatal"
	default:
		return "io"
	}
}

// Error is a classified transport failure.
type Error struct {
	Kind Kind
	Op   string // e.g. "read D1.R0+4"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrPortClosed is returned for I/O on a closed client.
var ErrPortClosed = errors.New("port closed")

// fatalPatterns match error text from transports that do not return
// an *Error. The port or device is gone; retrying will not help.
var fatalPatterns = []string{
	"access denied",
	"access is denied",
	"file not found",
	"filenotfound",
	"no such file or directory",
	"no such device",
	"permission denied",
	"permissionerror",
	"port closed",
	"port is closed",
	"bad file descriptor",
	"input/output error",
}

// KindOf classifies err. A wrapped *Error wins; otherwise the error
// chain and finally the text are inspected.
func KindOf(err error) Kind {
	if err == nil {
		return KindIO
	}

	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return classify(err)
}

// IsFatal reports whether err means the bus is unusable.
func IsFatal(err error) bool {
	return err != nil && KindOf(err) == KindFatal
}

func classify(err error) Kind {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return KindProtocol
	}

	if errors.Is(err, serial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	if errors.Is(err, ErrPortClosed) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrClosed) ||
		errors.Is(err, syscall.ENODEV) ||
		errors.Is(err, syscall.ENXIO) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.EBADF) {
		return KindFatal
	}

	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return KindFatal
		}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || strings.Contains(msg, "crc") ||
		strings.Contains(msg, "response") {
		return KindProtocol
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return KindTimeout
	}
	return KindIO
}

// wrap classifies err and attaches op. nil stays nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}
