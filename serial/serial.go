// Package serial declares the UART configuration and the minimal port
// interface the FDC protocol engine needs. The serial device driver
// itself is out of scope for this emulator (spec.md states the
// configuration, not an implementation); callers are expected to
// supply a Port, either backed by a real OS serial device or by
// NewLoopback, an in-process pair used by tests.
package serial

import (
	"fmt"
	"io"
)

// Config describes the fixed UART settings the FDC session requires.
type Config struct {
	BaudRate    int  `toml:"baud_rate"`
	DataBits    int  `toml:"data_bits"`
	Parity      byte `toml:"-"` // 'N' always, not user configurable
	StopBits    int  `toml:"stop_bits"`
	FlowControl bool `toml:"flow_control"`
}

// DefaultConfig is the fixed 9600 8N1, no-flow-control configuration
// spec.md §6 requires.
func DefaultConfig() Config {
	return Config{
		BaudRate:    9600,
		DataBits:    8,
		Parity:      'N',
		StopBits:    1,
		FlowControl: false,
	}
}

// Port is the minimal serial port surface the FDC engine drives: byte
// reads and writes, RTS assertion, and close.
type Port interface {
	io.Reader
	io.Writer
	SetRTS(asserted bool) error
	Close() error
}

// Open opens the named serial device with the given configuration.
// This emulator does not bundle an OS-level serial backend (spec.md
// calls the driver out of scope); a real build links one in by
// replacing this function or by constructing a Port directly from a
// backend package (e.g. via a build tag). Open always returns an
// error here so misconfigured callers fail fast instead of silently
// talking to nothing.
func Open(_ string, _ Config) (Port, error) {
	return nil, fmt.Errorf("serial: no serial backend linked in; supply a serial.Port (see NewLoopback for tests, or link an OS backend)")
}

// loopback is an in-memory Port backed by a pair of pipes, one for
// each direction. It is used by tests, where no physical machine is
// attached; the CLI has no loopback mode.
type loopback struct {
	r           *io.PipeReader
	w           *io.PipeWriter
	rtsAsserted bool
}

// NewLoopback returns two connected Ports: writes to one are readable
// from the other, and vice versa. This lets a test drive both the
// "machine" and "host" sides of a session in-process.
func NewLoopback() (host Port, machine Port) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()

	host = &loopback{r: r1, w: w2}
	machine = &loopback{r: r2, w: w1}
	return host, machine
}

func (l *loopback) Read(p []byte) (int, error)  { return l.r.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.w.Write(p) }

func (l *loopback) SetRTS(asserted bool) error {
	l.rtsAsserted = asserted
	return nil
}

func (l *loopback) Close() error {
	_ = l.r.Close()
	_ = l.w.Close()
	return nil
}
