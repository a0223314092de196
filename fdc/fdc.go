// Package fdc implements the Tandy/Brother FD-100 style serial FDC
// protocol: a two-mode (OP, FDC) request/response state machine that
// reads framed commands from a serial port and dispatches them against
// an in-memory sector array.
package fdc

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mhallin/knitty-gritty/disk"
	"github.com/mhallin/knitty-gritty/serial"
)

// Mode is the engine's top-level protocol phase.
type Mode int

const (
	// ModeOP is the initial mode: the engine waits for the OP frame
	// that switches it into FDC mode.
	ModeOP Mode = iota
	// ModeFDC is the disk-operation mode entered after OP command
	// 0x08. Spec.md notes the reference protocol never defines a
	// transition back to ModeOP; Mode is kept as an explicit,
	// exported type so a future reset command is a one-case addition
	// here, not a redesign.
	ModeFDC
)

func (m Mode) String() string {
	switch m {
	case ModeOP:
		return "OP"
	case ModeFDC:
		return "FDC"
	default:
		return "unknown"
	}
}

// opSwitchToFDC is the only OP command this engine recognizes.
const opSwitchToFDC = 0x08

// ErrProtocol is wrapped by every fatal protocol violation: an
// unexpected preamble, an unknown OP/FDC command, or a wait-byte
// mismatch. A session that returns an error wrapping ErrProtocol
// cannot be resumed; framing is ambiguous once desynchronized.
var ErrProtocol = errors.New("fdc: protocol violation")

// Event describes one completed FDC request, for observers such as
// the monitor package. It carries no sensitive payload data, only the
// shape of what happened.
type Event struct {
	Command     byte
	SectorIndex int // -1 if the command has no sector index
	Status      string
}

// Engine is the long-running consumer of bytes from a serial port. It
// owns no resources of its own beyond the port and mode; the Disk it
// drives is borrowed for the session's lifetime.
type Engine struct {
	port   serial.Port
	reader *bufio.Reader
	disk   *disk.Disk
	mode   Mode

	// OnEvent, if set, is called after each FDC request completes.
	// It must not block or mutate the Disk.
	OnEvent func(Event)
}

// New creates an Engine bound to the given serial port and disk. The
// port's RTS line is asserted for the session as spec.md §6 requires.
func New(port serial.Port, d *disk.Disk) (*Engine, error) {
	if err := port.SetRTS(true); err != nil {
		return nil, fmt.Errorf("fdc: asserting RTS: %w", err)
	}

	return &Engine{
		port:   port,
		reader: bufio.NewReader(port),
		disk:   d,
		mode:   ModeOP,
	}, nil
}

// Mode returns the engine's current top-level protocol phase.
func (e *Engine) Mode() Mode { return e.mode }

// Close releases the underlying serial port.
func (e *Engine) Close() error {
	return e.port.Close()
}

// Run drives the engine's request loop until the port returns a
// non-timeout error (e.g. the session is closed) or a protocol
// violation occurs.
func (e *Engine) Run() error {
	for {
		if err := e.Step(); err != nil {
			return err
		}
	}
}

// Step processes exactly one request to completion.
func (e *Engine) Step() error {
	switch e.mode {
	case ModeOP:
		return e.stepOP()
	case ModeFDC:
		return e.stepFDC()
	default:
		return fmt.Errorf("%w: invalid mode %v", ErrProtocol, e.mode)
	}
}

// read reads exactly n bytes from the port, retrying transparently on
// empty reads (serial timeouts). If ignoreZeroes is set, 0x00 bytes
// are discarded rather than counted - used only for the OP frame's
// leading-zero-tolerant preamble.
func (e *Engine) read(n int, ignoreZeroes bool) ([]byte, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, 1)

	for len(out) < n {
		m, err := e.reader.Read(buf)
		if err != nil {
			return nil, err
		}
		if m == 0 {
			// A timed-out read with nothing available; retry
			// transparently per spec.md §4.E.
			continue
		}
		if ignoreZeroes && buf[0] == 0x00 {
			continue
		}
		out = append(out, buf[0])
	}

	return out, nil
}

func (e *Engine) readByte(ignoreZeroes bool) (byte, error) {
	b, err := e.read(1, ignoreZeroes)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (e *Engine) stepOP() error {
	zz, err := e.read(2, true)
	if err != nil {
		return err
	}
	if string(zz) != "ZZ" {
		return fmt.Errorf("%w: expected OP preamble \"ZZ\", got %q", ErrProtocol, zz)
	}

	cmd, err := e.readByte(false)
	if err != nil {
		return err
	}
	dataLen, err := e.readByte(false)
	if err != nil {
		return err
	}
	if _, err := e.read(int(dataLen), false); err != nil {
		return err
	}

	// The checksum byte is read but never validated, matching the
	// emulator's documented leniency (spec.md §9).
	if _, err := e.readByte(false); err != nil {
		return err
	}

	if cmd != opSwitchToFDC {
		return fmt.Errorf("%w: unknown OP command 0x%02X", ErrProtocol, cmd)
	}

	e.mode = ModeFDC
	return nil
}

func (e *Engine) stepFDC() error {
	cmd, args, err := e.readFDCRequest()
	if err != nil {
		return err
	}

	var ev Event
	ev.Command = cmd

	switch cmd {
	case 'A':
		err = e.readIDSection(args, &ev)
	case 'S':
		err = e.searchIDSection(args, &ev)
	case 'B', 'C':
		err = e.writeIDSection(args, &ev)
	case 'W', 'X':
		err = e.writeSector(args, &ev)
	case 'R':
		err = e.readSector(args, &ev)
	default:
		err = fmt.Errorf("%w: unknown FDC command %q", ErrProtocol, string(cmd))
	}

	if err != nil {
		return err
	}

	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
	return nil
}

// readFDCRequest reads a single ASCII command letter followed by an
// optional comma-separated argument string, terminated by '\r'. A
// leading '\r' before the command letter is dropped.
func (e *Engine) readFDCRequest() (byte, []string, error) {
	var cmd byte
	var argBuf strings.Builder

	for {
		c, err := e.readByte(false)
		if err != nil {
			return 0, nil, err
		}

		if cmd != 0 && c == '\r' {
			break
		}
		if c == '\r' {
			continue
		}

		if cmd == 0 {
			cmd = c
		} else {
			argBuf.WriteByte(c)
		}
	}

	argStr := argBuf.String()
	if argStr == "" {
		return cmd, nil, nil
	}
	return cmd, strings.Split(argStr, ","), nil
}

func sectorIndexArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected exactly one sector index argument, got %d", ErrProtocol, len(args))
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid sector index %q: %v", ErrProtocol, args[0], err)
	}
	if idx < 0 || idx >= disk.SectorCount {
		return 0, fmt.Errorf("%w: sector index %d out of range [0,%d)", ErrProtocol, idx, disk.SectorCount)
	}
	return idx, nil
}

func statusWord(idx int) string {
	return fmt.Sprintf("00%02X0000", idx)
}

func (e *Engine) writeString(s string) error {
	_, err := e.port.Write([]byte(s))
	return err
}

func (e *Engine) expectCR() error {
	b, err := e.readByte(false)
	if err != nil {
		return err
	}
	if b != '\r' {
		return fmt.Errorf("%w: expected 0x0D wait byte, got 0x%02X", ErrProtocol, b)
	}
	return nil
}

func (e *Engine) readIDSection(args []string, ev *Event) error {
	idx, err := sectorIndexArg(args)
	if err != nil {
		return err
	}
	ev.SectorIndex = idx

	status := statusWord(idx)
	ev.Status = status
	if err := e.writeString(status); err != nil {
		return err
	}

	if err := e.expectCR(); err != nil {
		return err
	}

	return e.writeString(string(e.disk.Sectors[idx].ID[:]))
}

func (e *Engine) searchIDSection(args []string, ev *Event) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: search-id takes no arguments, got %d", ErrProtocol, len(args))
	}
	ev.SectorIndex = -1

	if err := e.writeString("00000000"); err != nil {
		return err
	}

	idBytes, err := e.read(disk.SectorIDLength, false)
	if err != nil {
		return err
	}
	var id [disk.SectorIDLength]byte
	copy(id[:], idBytes)

	idx := e.disk.IndexOfID(id)
	if idx == disk.NotFound {
		ev.Status = "40000000"
		return e.writeString(ev.Status)
	}

	ev.SectorIndex = idx
	ev.Status = statusWord(idx)
	return e.writeString(ev.Status)
}

func (e *Engine) writeIDSection(args []string, ev *Event) error {
	idx, err := sectorIndexArg(args)
	if err != nil {
		return err
	}
	ev.SectorIndex = idx
	ev.Status = statusWord(idx)

	if err := e.writeString(ev.Status); err != nil {
		return err
	}

	idBytes, err := e.read(disk.SectorIDLength, false)
	if err != nil {
		return err
	}
	copy(e.disk.Sectors[idx].ID[:], idBytes)

	return e.writeString(ev.Status)
}

func (e *Engine) writeSector(args []string, ev *Event) error {
	idx, err := sectorIndexArg(args)
	if err != nil {
		return err
	}
	ev.SectorIndex = idx
	ev.Status = statusWord(idx)

	if err := e.writeString(ev.Status); err != nil {
		return err
	}

	data, err := e.read(disk.SectorDataLength, false)
	if err != nil {
		return err
	}
	copy(e.disk.Sectors[idx].Data[:], data)

	return e.writeString(ev.Status)
}

func (e *Engine) readSector(args []string, ev *Event) error {
	idx, err := sectorIndexArg(args)
	if err != nil {
		return err
	}
	ev.SectorIndex = idx
	ev.Status = statusWord(idx)

	if err := e.writeString(ev.Status); err != nil {
		return err
	}

	if err := e.expectCR(); err != nil {
		return err
	}

	return e.writeString(string(e.disk.Sectors[idx].Data[:]))
}
