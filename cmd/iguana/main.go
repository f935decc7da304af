// Package main provides iguana, a command-line front end for the jimulator
// ARM simulator.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/iguana-debugger/libiguana/aasm"
	"github.com/iguana-debugger/libiguana/config"
	"github.com/iguana-debugger/libiguana/insts"
	"github.com/iguana-debugger/libiguana/jimulator"
	"github.com/iguana-debugger/libiguana/loader"
)

type Globals struct {
	Config    string `help:"Path to a JSON configuration file." type:"existingfile"`
	Jimulator string `help:"Path to the jimulator executable (overrides the config file)."`
	Verbose   int    `short:"v" type:"counter" help:"Increase log verbosity."`
	Trace     bool   `help:"Log every command exchanged with jimulator."`
}

func main() {
	var cli struct {
		Globals

		Ping    pingCmd    `cmd:"" help:"Check that jimulator responds."`
		Run     runCmd     `cmd:"" help:"Load a program and run it to completion."`
		Compile compileCmd `cmd:"" help:"Assemble a source file and print the .kmd listing."`
		Dis     disCmd     `cmd:"" help:"Disassemble instruction words."`
		Tui     tuiCmd     `cmd:"" help:"Interactive monitor for a program."`
		Watch   watchCmd   `cmd:"" help:"Re-assemble and re-run a source file whenever it changes."`
	}

	ctx := kong.Parse(&cli,
		kong.Name("iguana"),
		kong.Description("Drive the jimulator ARM simulator."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// load resolves the effective configuration.
func (g *Globals) load() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if g.Config != "" {
		var err error
		cfg, err = config.LoadConfig(g.Config)
		if err != nil {
			return nil, err
		}
	}

	if g.Jimulator != "" {
		cfg.Jimulator = g.Jimulator
	}
	cfg.Verbosity = max(cfg.Verbosity, g.Verbose)
	if g.Trace {
		cfg.Trace = true
	}
	if cfg.Trace {
		cfg.Verbosity = max(cfg.Verbosity, 2)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func newLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity}).WithName("iguana")
}

// open loads the configuration and starts a session.
func (g *Globals) open() (*jimulator.Session, *config.Config, logr.Logger, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, nil, logr.Discard(), err
	}
	log := newLogger(cfg.Verbosity)

	opts := append(cfg.SessionOptions(), jimulator.WithLogger(log))
	if cfg.Trace {
		opts = append(opts, jimulator.WithHook(jimulator.NewTraceHook(log)))
	}

	s, err := jimulator.New(cfg.Jimulator, opts...)
	if err != nil {
		return nil, nil, log, err
	}

	return s, cfg, log, nil
}

// loadSource loads a .kmd listing, or assembles and loads a .s file.
func loadSource(s *jimulator.Session, path string) (*loader.Image, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	if !isAssembly(path) {
		return s.LoadKMD(string(text))
	}

	res, err := s.CompileAasm(string(text))
	if err != nil {
		return nil, err
	}
	if res.Terminal != "" {
		fmt.Fprint(os.Stderr, res.Terminal)
	}

	return s.LoadKMD(res.KMD)
}

func isAssembly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		return true
	}
	return false
}

// parseAddr parses a hex address with an optional 0x prefix.
func parseAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint32(v), nil
}

type pingCmd struct{}

func (p *pingCmd) Run(g *Globals) error {
	s, _, _, err := g.open()
	if err != nil {
		return err
	}
	defer s.Close()

	reply, err := s.Ping()
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

type compileCmd struct {
	File string `arg:"" type:"existingfile" help:"Assembly source file."`
}

func (c *compileCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	res, err := aasm.New(cfg.Aasm, cfg.Mnemonics).CompileFile(c.File)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, res.Terminal)
	fmt.Print(res.KMD)
	return nil
}

type disCmd struct {
	Words []string `arg:"" help:"Instruction words in hex."`
}

func (d *disCmd) Run(g *Globals) error {
	for _, w := range d.Words {
		word, err := parseAddr(w)
		if err != nil {
			return err
		}
		fmt.Printf("%08x  %s\n", word, insts.DecodeOrWord(word))
	}
	return nil
}
