package jimulator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/iguana-debugger/libiguana/aasm"
	"github.com/iguana-debugger/libiguana/kmd"
	"github.com/iguana-debugger/libiguana/loader"
)

// MaxStringLength bounds ReadString on images without a terminator.
const MaxStringLength = 4096

// stringReadChunk is the number of bytes ReadString fetches per request.
const stringReadChunk = 32

// Session owns one simulator process and serializes every command
// exchange with it. A Session is safe for concurrent use.
type Session struct {
	*sim.HookableBase

	// mu is held for each complete request/response exchange on ch.
	// Lock order: mu before the trap table's lock.
	mu    sync.Mutex
	ch    *Channel
	cmd   *exec.Cmd
	traps *TrapTable

	programMu sync.Mutex
	program   []kmd.Token

	args          []string
	aasmPath      string
	mnemonicsPath string
	stderr        io.Writer
	log           logr.Logger

	closeOnce sync.Once
	closed    atomic.Bool
}

func newSession(opts []Option) *Session {
	s := &Session{
		HookableBase:  sim.NewHookableBase(),
		traps:         NewTrapTable(),
		aasmPath:      DefaultAasmPath,
		mnemonicsPath: DefaultMnemonicsPath,
		stderr:        os.Stderr,
		log:           logr.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// New spawns the simulator at path with piped stdin and stdout and returns a
// session that owns it.
func New(path string, opts ...Option) (*Session, error) {
	s := newSession(opts)

	cmd := exec.Command(path, s.args...)
	cmd.Stderr = s.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open jimulator stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open jimulator stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start jimulator: %w", err)
	}

	s.cmd = cmd
	s.ch = NewChannel(stdin, stdout)
	s.log.Info("started jimulator", "path", path, "pid", cmd.Process.Pid)

	return s, nil
}

// Attach creates a session over an existing request writer and response
// reader. No process is owned; Close closes in and out if they are
// io.Closers.
func Attach(in io.Writer, out io.Reader, opts ...Option) *Session {
	s := newSession(opts)
	s.ch = NewChannel(in, out)
	return s
}

// Close terminates and reaps the simulator. Teardown problems are logged,
// never returned; Close always returns nil and is safe to call repeatedly.
func (s *Session) Close() error {
	s.closeOnce.Do(s.teardown)
	return nil
}

func (s *Session) teardown() {
	s.closed.Store(true)

	// Killing the process, or closing an attached reader, unblocks any
	// caller stuck in a read while holding mu.
	if s.cmd != nil {
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.log.Error(err, "failed to kill jimulator")
		}
	} else if err := s.ch.closeOutput(); err != nil {
		s.log.Error(err, "failed to close jimulator stdout")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ch.closeInput(); err != nil {
		s.log.Error(err, "failed to close jimulator stdin")
	}

	if s.cmd == nil {
		return
	}

	if rest, err := s.ch.ReadToEnd(); err != nil {
		s.log.Error(err, "failed to drain jimulator stdout")
	} else if len(rest) > 0 {
		s.log.V(1).Info("discarded unread output", "bytes", len(rest))
	}

	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		s.log.V(1).Info("jimulator exited", "state", exitErr.String())
	default:
		s.log.Error(err, "failed to wait for jimulator")
	}
	s.log.Info("stopped jimulator")
}

// send writes one request. s.mu must be held.
func (s *Session) send(req []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.ch.Write(req); err != nil {
		return err
	}
	s.invoke(HookPosCommand, req)
	return nil
}

// recv reads exactly n response bytes. s.mu must be held.
func (s *Session) recv(n int) ([]byte, error) {
	buf, err := s.ch.ReadExact(n)
	if err != nil {
		return nil, err
	}
	s.invoke(HookPosResponse, buf)
	return buf, nil
}

func (s *Session) invoke(pos *sim.HookPos, data []byte) {
	if s.NumHooks() == 0 {
		return
	}

	var item any
	if pos == HookPosCommand && len(data) > 0 {
		item = data[0]
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   item,
		Detail: bytes.Clone(data),
	})
}

// command performs a write-only exchange.
func (s *Session) command(req []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(req)
}

// query sends req and reads an n-byte response as one exchange.
func (s *Session) query(req []byte, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.send(req); err != nil {
		return nil, err
	}
	return s.recv(n)
}

// Ping checks that the simulator is responsive and returns its reply.
func (s *Session) Ping() (string, error) {
	buf, err := s.query(EncodePing(), PingResponseLength)
	if err != nil {
		return "", err
	}
	return DecodePing(buf)
}

// ReadWord reads the 32-bit word at addr.
func (s *Session) ReadWord(addr uint32) (uint32, error) {
	buf, err := s.query(EncodeReadWord(addr), WordResponseLength)
	if err != nil {
		return 0, err
	}
	return DecodeWord(buf)
}

// ReadMemory reads n bytes starting at addr.
func (s *Session) ReadMemory(addr uint32, n int) ([]byte, error) {
	req, err := EncodeReadBytes(addr, n)
	if err != nil {
		return nil, err
	}
	return s.query(req, n)
}

// ReadString reads a NUL-terminated string starting at addr.
func (s *Session) ReadString(addr uint32) (string, error) {
	var str []byte

	for len(str) < MaxStringLength {
		chunk, err := s.ReadMemory(addr+uint32(len(str)), stringReadChunk)
		if err != nil {
			return "", err
		}

		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			str = append(str, chunk[:i]...)
			if !utf8.Valid(str) {
				return "", ErrInvalidUTF8
			}
			return string(str), nil
		}
		str = append(str, chunk...)
	}

	return "", fmt.Errorf("no terminator within %d bytes of 0x%08x", MaxStringLength, addr)
}

// WriteMemory writes data to memory at addr. Payloads longer than 65535
// bytes fail with ErrIntegerOverflow before anything is sent.
func (s *Session) WriteMemory(addr uint32, data []byte) error {
	req, err := EncodeWriteMemory(addr, data)
	if err != nil {
		return err
	}
	return s.command(req)
}

// Registers reads the register file.
func (s *Session) Registers() (Registers, error) {
	buf, err := s.query(EncodeReadRegisters(), RegisterBufferLength)
	if err != nil {
		return Registers{}, err
	}
	return DecodeRegisters(buf)
}

// Status queries the board state. Callers poll it to observe progress.
func (s *Session) Status() (BoardState, error) {
	buf, err := s.query(EncodeStatus(), StatusResponseLength)
	if err != nil {
		return BoardState{}, err
	}
	return DecodeBoardState(buf)
}

// Start begins execution for the given number of steps; 0 runs until the
// program stops by itself.
func (s *Session) Start(steps uint32) error {
	return s.command(EncodeStart(steps))
}

// Step executes a single instruction.
func (s *Session) Step() error {
	return s.Start(1)
}

// Stop halts execution.
func (s *Session) Stop() error {
	return s.command(EncodeStop())
}

// Pause suspends execution.
func (s *Session) Pause() error {
	return s.command(EncodePause())
}

// Continue resumes paused execution. It sends the same bytes as Pause.
func (s *Session) Continue() error {
	return s.command(EncodeContinue())
}

// Reset resets the simulator. Local trap bookkeeping is cleared even if the
// command fails, since the simulator drops its traps on reset.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.send(EncodeReset())
	s.traps.Clear()

	return err
}

// DefineTrap installs a trap at addr in the lowest free slot and returns it.
func (s *Session) DefineTrap(addr uint32) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.traps.Define(addr, func(slot uint8) error {
		return s.send(EncodeDefineTrap(slot, addr))
	})
}

// RemoveTrap removes the trap at addr and frees its slot.
func (s *Session) RemoveTrap(addr uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.traps.Remove(addr, func(slot uint8) error {
		return s.send(EncodeRemoveTrap(slot))
	})
	return err
}

// Traps lists the installed traps without talking to the simulator.
func (s *Session) Traps() []Trap {
	return s.traps.Traps()
}

// TerminalMessages drains the simulator's pending terminal output.
func (s *Session) TerminalMessages() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []byte
	for {
		if err := s.send(EncodeTerminalRead()); err != nil {
			return nil, err
		}

		hdr, err := s.recv(1)
		if err != nil {
			return nil, err
		}
		if hdr[0] == 0 {
			return out, nil
		}

		frag, err := s.recv(int(hdr[0]))
		if err != nil {
			return nil, err
		}
		out = append(out, frag...)
	}
}

// TerminalString drains pending terminal output as UTF-8 text.
func (s *Session) TerminalString() (string, error) {
	out, err := s.TerminalMessages()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", ErrInvalidUTF8
	}
	return string(out), nil
}

// WriteTerminal sends msg to the simulated terminal in chunks of at most
// TerminalChunkSize bytes.
func (s *Session) WriteTerminal(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range ChunkTerminal(msg) {
		req, err := EncodeTerminalWrite(chunk)
		if err != nil {
			return err
		}
		if err := s.send(req); err != nil {
			return err
		}
		if _, err := s.recv(1); err != nil {
			return err
		}
	}

	return nil
}

// LoadProgram writes a parsed image into memory and remembers it.
// A failed load may leave part of the image in memory.
func (s *Session) LoadProgram(tokens []kmd.Token) (*loader.Image, error) {
	img, err := loader.Load(s, tokens)
	if err != nil {
		return nil, err
	}

	s.programMu.Lock()
	s.program = tokens
	s.programMu.Unlock()

	s.log.V(1).Info("loaded program", "words", img.Words, "bytes", img.Bytes)

	return img, nil
}

// LoadKMD parses a .kmd listing and loads it.
func (s *Session) LoadKMD(text string) (*loader.Image, error) {
	tokens, err := kmd.Parse(text)
	if err != nil {
		s.log.V(1).Info("kmd parse failed", "reason", err.Error())
		return nil, ErrParse
	}
	return s.LoadProgram(tokens)
}

// Program returns the token stream of the last successful load, or nil.
func (s *Session) Program() []kmd.Token {
	s.programMu.Lock()
	defer s.programMu.Unlock()
	return s.program
}

// CompileAasm assembles source with the configured aasm tools.
func (s *Session) CompileAasm(source string) (aasm.Result, error) {
	return aasm.New(s.aasmPath, s.mnemonicsPath).Compile(source)
}
