package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Command bytes understood by the server.
const (
	cmdRemoveTrap    byte = 0x00
	cmdPing          byte = 0x01
	cmdReset         byte = 0x04
	cmdTerminalWrite byte = 0x12
	cmdTerminalRead  byte = 0x13
	cmdStatus        byte = 0x20
	cmdStop          byte = 0x21
	cmdPause         byte = 0x22
	cmdDefineTrap    byte = 0x30
	cmdStart         byte = 0xB0

	memFamilyMask byte = 0xC0
	memFamily     byte = 0x40
	memSpaceMask  byte = 0x30
	memRegisters  byte = 0x10
	memReadBit    byte = 0x08
	memSizeMask   byte = 0x07
)

// Status codes reported by the server.
const (
	StatusNormal     byte = 0x00
	StatusStopped    byte = 0x40
	StatusBreakpoint byte = 0x41
	StatusFinished   byte = 0x44
	StatusRunning    byte = 0x80
)

// ErrUnknownCommand is returned by Serve for a command byte it cannot parse.
var ErrUnknownCommand = errors.New("unknown command")

// StatusReply is one scripted answer to a status query.
type StatusReply struct {
	Code            byte
	StepsRemaining  uint32
	StepsSinceReset uint32
}

// Server answers jimulator commands.
type Server struct {
	mu sync.Mutex

	regs   RegFile
	memory *Memory

	status          byte
	budget          uint32
	stepsRemaining  uint32
	stepsSinceReset uint32

	traps  map[uint8]uint32
	script []StatusReply

	ping   [4]byte
	output [][]byte
	input  []byte

	commands int
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithPingReply sets the 4-byte ping reply. Longer replies are truncated and
// shorter ones padded with NUL bytes.
func WithPingReply(reply string) ServerOption {
	return func(s *Server) {
		s.ping = [4]byte{}
		copy(s.ping[:], reply)
	}
}

// WithStatusScript queues status replies that are returned, in order,
// before the server reports its own state again.
func WithStatusScript(replies ...StatusReply) ServerOption {
	return func(s *Server) {
		s.script = append(s.script, replies...)
	}
}

// WithTerminalOutput queues terminal output fragments.
func WithTerminalOutput(fragments ...string) ServerOption {
	return func(s *Server) {
		for _, f := range fragments {
			s.output = append(s.output, []byte(f))
		}
	}
}

// WithRegisters sets the initial register file.
func WithRegisters(words [NumRegs]uint32) ServerOption {
	return func(s *Server) {
		s.regs.R = words
	}
}

// NewServer creates a server in the reset state.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		memory: NewMemory(),
		traps:  make(map[uint8]uint32),
		ping:   [4]byte{'P', 'O', 'N', 'G'},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve handles commands from r until it reaches EOF between commands.
// Responses are written to w, one Write per response.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	var op [1]byte

	for {
		if _, err := io.ReadFull(r, op[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read command: %w", err)
		}

		resp, err := s.handle(op[0], r)
		if err != nil {
			return err
		}

		if len(resp) == 0 {
			continue
		}
		if _, err := w.Write(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

func (s *Server) handle(op byte, r io.Reader) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands++

	switch {
	case op == cmdPing:
		return append([]byte(nil), s.ping[:]...), nil
	case op == cmdReset:
		s.reset()
		return nil, nil
	case op == cmdStatus:
		return s.statusReply(), nil
	case op == cmdStop:
		s.status = StatusStopped
		return nil, nil
	case op == cmdPause:
		s.togglePause()
		return nil, nil
	case op == cmdStart:
		return nil, s.handleStart(r)
	case op == cmdDefineTrap:
		return nil, s.handleDefineTrap(r)
	case op == cmdRemoveTrap:
		return nil, s.handleRemoveTrap(r)
	case op == cmdTerminalRead:
		return s.handleTerminalRead(r)
	case op == cmdTerminalWrite:
		return s.handleTerminalWrite(r)
	case op&memFamilyMask == memFamily:
		return s.handleMemory(op, r)
	}

	return nil, fmt.Errorf("0x%02x: %w", op, ErrUnknownCommand)
}

func (s *Server) reset() {
	s.regs = RegFile{}
	s.status = StatusNormal
	s.budget = 0
	s.stepsRemaining = 0
	s.stepsSinceReset = 0
	clear(s.traps)
}

func (s *Server) statusReply() []byte {
	var reply StatusReply

	if len(s.script) > 0 {
		reply = s.script[0]
		s.script = s.script[1:]
	} else {
		reply = StatusReply{
			Code:            s.status,
			StepsRemaining:  s.stepsRemaining,
			StepsSinceReset: s.stepsSinceReset,
		}
		if s.status == StatusRunning {
			s.finishRun()
		}
	}

	buf := make([]byte, 0, 9)
	buf = append(buf, reply.Code)
	buf = binary.LittleEndian.AppendUint32(buf, reply.StepsRemaining)
	return binary.LittleEndian.AppendUint32(buf, reply.StepsSinceReset)
}

// finishRun completes the current run. A run stops at the lowest trap if any
// is installed; otherwise a bounded run stops and an unbounded one finishes.
func (s *Server) finishRun() {
	steps := max(s.budget, 1)

	s.stepsSinceReset += steps
	s.stepsRemaining = 0
	s.regs.SetPC(s.regs.PC() + 4*steps)

	switch {
	case len(s.traps) > 0:
		s.status = StatusBreakpoint
		s.regs.SetPC(s.lowestTrap())
	case s.budget > 0:
		s.status = StatusStopped
	default:
		s.status = StatusFinished
	}
}

func (s *Server) lowestTrap() uint32 {
	first := true
	var lowest uint32
	for _, addr := range s.traps {
		if first || addr < lowest {
			lowest = addr
			first = false
		}
	}
	return lowest
}

func (s *Server) togglePause() {
	switch s.status {
	case StatusRunning:
		s.status = StatusStopped
	case StatusStopped:
		s.status = StatusRunning
	}
}

func (s *Server) handleStart(r io.Reader) error {
	buf, err := readN(r, 4)
	if err != nil {
		return err
	}

	s.budget = binary.LittleEndian.Uint32(buf)
	s.stepsRemaining = s.budget
	s.status = StatusRunning

	return nil
}

func (s *Server) handleDefineTrap(r io.Reader) error {
	// slot, condition mask, size mask, address A, address B, 8 reserved bytes
	buf, err := readN(r, 3+4+4+8)
	if err != nil {
		return err
	}

	s.traps[buf[0]] = binary.LittleEndian.Uint32(buf[3:7])

	return nil
}

func (s *Server) handleRemoveTrap(r io.Reader) error {
	// The leading zero byte has been consumed as the command byte.
	buf, err := readN(r, 3+4)
	if err != nil {
		return err
	}

	delete(s.traps, uint8(binary.LittleEndian.Uint32(buf[3:7])))

	return nil
}

func (s *Server) handleTerminalRead(r io.Reader) ([]byte, error) {
	buf, err := readN(r, 2)
	if err != nil {
		return nil, err
	}

	limit := int(buf[1])
	if len(s.output) == 0 || limit == 0 {
		return []byte{0}, nil
	}

	frag := s.output[0]
	if len(frag) > limit {
		s.output[0] = frag[limit:]
		frag = frag[:limit]
	} else {
		s.output = s.output[1:]
	}

	return append([]byte{byte(len(frag))}, frag...), nil
}

func (s *Server) handleTerminalWrite(r io.Reader) ([]byte, error) {
	buf, err := readN(r, 2)
	if err != nil {
		return nil, err
	}

	payload, err := readN(r, int(buf[1]))
	if err != nil {
		return nil, err
	}
	s.input = append(s.input, payload...)

	return []byte{buf[1]}, nil
}

func (s *Server) handleMemory(op byte, r io.Reader) ([]byte, error) {
	sizeClass := op & memSizeMask
	if sizeClass > 2 {
		return nil, fmt.Errorf("0x%02x: %w", op, ErrUnknownCommand)
	}
	size := 1 << sizeClass

	hdr, err := readN(r, 6)
	if err != nil {
		return nil, err
	}
	addr := binary.LittleEndian.Uint32(hdr[0:4])
	n := int(binary.LittleEndian.Uint16(hdr[4:6])) * size

	registers := op&memSpaceMask == memRegisters

	if op&memReadBit != 0 {
		if registers {
			return s.readRegisters(addr, n), nil
		}
		return s.memory.ReadBytes(addr, n), nil
	}

	payload, err := readN(r, n)
	if err != nil {
		return nil, err
	}
	if registers {
		s.writeRegisters(addr, payload)
	} else {
		s.memory.WriteBytes(addr, payload)
	}

	return nil, nil
}

// readRegisters returns n bytes of the register file starting at register
// index first.
func (s *Server) readRegisters(first uint32, n int) []byte {
	buf := make([]byte, 0, n)
	for i := 0; len(buf) < n; i++ {
		buf = binary.LittleEndian.AppendUint32(buf, s.regs.ReadReg(int(first)+i))
	}
	return buf[:n]
}

func (s *Server) writeRegisters(first uint32, payload []byte) {
	for i := 0; (i+1)*4 <= len(payload); i++ {
		s.regs.WriteReg(int(first)+i, binary.LittleEndian.Uint32(payload[i*4:]))
	}
}

// ReadMemory returns n bytes of memory starting at addr.
func (s *Server) ReadMemory(addr uint32, n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.ReadBytes(addr, n)
}

// WriteMemory stores data at addr, as if written by a loaded program.
func (s *Server) WriteMemory(addr uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory.WriteBytes(addr, data)
}

// Registers returns a copy of the register file.
func (s *Server) Registers() RegFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs
}

// TerminalInput returns everything written to the terminal so far.
func (s *Server) TerminalInput() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.input...)
}

// QueueTerminalOutput adds a terminal output fragment.
func (s *Server) QueueTerminalOutput(fragment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = append(s.output, []byte(fragment))
}

// Traps returns the installed traps keyed by slot.
func (s *Server) Traps() map[uint8]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	traps := make(map[uint8]uint32, len(s.traps))
	for slot, addr := range s.traps {
		traps[slot] = addr
	}
	return traps
}

// TrapSlots returns the installed slot numbers in ascending order.
func (s *Server) TrapSlots() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]uint8, 0, len(s.traps))
	for slot := range s.traps {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Status returns the current status code.
func (s *Server) Status() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Commands returns the number of commands handled.
func (s *Server) Commands() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commands
}

func readN(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read %d argument bytes: %w", n, err)
	}
	return buf, nil
}
