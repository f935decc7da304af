// Package aasm invokes the aasm assembler to turn ARM assembly into a .kmd
// listing.
package aasm

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"unicode/utf8"
)

var (
	// ErrAasmNotFound is returned when the assembler binary does not exist.
	ErrAasmNotFound = errors.New("the aasm binary was not found")

	// ErrMnemonicsNotFound is returned when the mnemonics file does not exist.
	ErrMnemonicsNotFound = errors.New("the mnemonics file was not found")

	// ErrInvalidUTF8 is returned when the assembler output is not UTF-8.
	ErrInvalidUTF8 = errors.New("aasm produced output that was not valid UTF-8")
)

// Result holds the output of one assembler run.
type Result struct {
	// KMD is the compiled listing written to standard output.
	KMD string
	// Terminal is the diagnostic text written to standard error.
	Terminal string
}

// Assembler locates the aasm binary and its mnemonics definition file.
type Assembler struct {
	Path      string
	Mnemonics string
}

// New creates an Assembler.
func New(path, mnemonics string) *Assembler {
	return &Assembler{Path: path, Mnemonics: mnemonics}
}

// Compile assembles source text. The text is written to a temporary file
// that is removed afterwards.
func (a *Assembler) Compile(source string) (Result, error) {
	if err := a.check(); err != nil {
		return Result{}, err
	}

	dir, err := os.MkdirTemp("", "aasm")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "source.s")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write assembly source: %w", err)
	}

	return a.run(path)
}

// CompileFile assembles the file at path.
func (a *Assembler) CompileFile(path string) (Result, error) {
	if err := a.check(); err != nil {
		return Result{}, err
	}
	return a.run(path)
}

// check verifies both tool paths before anything is run.
func (a *Assembler) check() error {
	if _, err := os.Stat(a.Path); err != nil {
		return fmt.Errorf("%s: %w", a.Path, ErrAasmNotFound)
	}
	if _, err := os.Stat(a.Mnemonics); err != nil {
		return fmt.Errorf("%s: %w", a.Mnemonics, ErrMnemonicsNotFound)
	}
	return nil
}

func (a *Assembler) run(source string) (Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.Command(a.Path, "-lk", "/dev/stdout", "-m", a.Mnemonics, source)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// A non-zero exit still carries diagnostics on stderr.
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("failed to run aasm: %w", err)
		}
	}

	if !utf8.Valid(stdout.Bytes()) || !utf8.Valid(stderr.Bytes()) {
		return Result{}, ErrInvalidUTF8
	}

	return Result{KMD: stdout.String(), Terminal: stderr.String()}, nil
}
