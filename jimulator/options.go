package jimulator

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"
)

// Default locations of the optional assembler tools.
const (
	DefaultAasmPath      = "/usr/local/bin/aasm"
	DefaultMnemonicsPath = "/usr/local/bin/mnemonics"
)

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithLogger sets the logger used for lifecycle and teardown messages.
func WithLogger(log logr.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithArgs sets extra command-line arguments for the simulator process.
func WithArgs(args ...string) Option {
	return func(s *Session) {
		s.args = append([]string(nil), args...)
	}
}

// WithAasm sets the path to the aasm assembler.
func WithAasm(path string) Option {
	return func(s *Session) {
		s.aasmPath = path
	}
}

// WithMnemonics sets the path to the aasm mnemonics file.
func WithMnemonics(path string) Option {
	return func(s *Session) {
		s.mnemonicsPath = path
	}
}

// WithStderr redirects the simulator's standard error. By default it is
// inherited from the host process.
func WithStderr(w io.Writer) Option {
	return func(s *Session) {
		s.stderr = w
	}
}

// WithHook registers a hook before the session starts talking to the
// simulator.
func WithHook(hook sim.Hook) Option {
	return func(s *Session) {
		s.AcceptHook(hook)
	}
}
