package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iguana-debugger/libiguana/jimulator"
)

type runCmd struct {
	File    string        `arg:"" type:"existingfile" help:"Program to run (.kmd listing or .s source)."`
	Steps   uint32        `help:"Number of instructions to execute (0 runs until stopped)." default:"0"`
	Break   []string      `short:"b" help:"Hex addresses to trap on."`
	Input   string        `help:"Text to send to the simulated terminal before starting."`
	Timeout time.Duration `help:"Give up after this long (0 waits forever)." default:"0"`
}

func (r *runCmd) Run(g *Globals) error {
	s, cfg, log, err := g.open()
	if err != nil {
		return err
	}
	defer s.Close()

	img, err := loadSource(s, r.File)
	if err != nil {
		return err
	}
	log.V(1).Info("program loaded", "words", img.Words, "bytes", img.Bytes, "labels", len(img.Labels))

	for _, b := range r.Break {
		addr, err := parseAddr(b)
		if err != nil {
			return err
		}
		slot, err := s.DefineTrap(addr)
		if err != nil {
			return err
		}
		log.V(1).Info("trap defined", "addr", fmt.Sprintf("0x%08x", addr), "slot", slot)
	}

	if r.Input != "" {
		if err := s.WriteTerminal([]byte(r.Input)); err != nil {
			return err
		}
	}

	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	if err := s.Start(r.Steps); err != nil {
		return err
	}

	state, err := runToStop(ctx, s, os.Stdout, cfg.PollInterval())
	if err != nil {
		return err
	}

	return report(os.Stdout, s, state)
}

type statusSource interface {
	Status() (jimulator.BoardState, error)
}

type terminalSource interface {
	TerminalMessages() ([]byte, error)
}

// session is the subset of *jimulator.Session the run loop needs.
type session interface {
	statusSource
	terminalSource
}

// waitForStop polls until the board leaves the running states. It returns
// the final state and the number of polls taken.
func waitForStop(ctx context.Context, src statusSource, interval time.Duration) (jimulator.BoardState, int, error) {
	polls := 0
	for {
		state, err := src.Status()
		polls++
		if err != nil {
			return state, polls, err
		}
		if !state.Status.IsRunning() {
			return state, polls, nil
		}

		select {
		case <-ctx.Done():
			return state, polls, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// drainTerminal copies terminal output to w until done is closed, then
// performs a final drain.
func drainTerminal(ctx context.Context, src terminalSource, w io.Writer, interval time.Duration, done <-chan struct{}) error {
	for {
		msg, err := src.TerminalMessages()
		if err != nil {
			return err
		}
		if _, err := w.Write(msg); err != nil {
			return err
		}

		select {
		case <-done:
			msg, err := src.TerminalMessages()
			if err != nil {
				return err
			}
			_, err = w.Write(msg)
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// runToStop waits for the program to stop while streaming its terminal
// output to w.
func runToStop(ctx context.Context, s session, w io.Writer, interval time.Duration) (jimulator.BoardState, error) {
	var state jimulator.BoardState
	done := make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var err error
		state, _, err = waitForStop(ctx, s, interval)
		return err
	})
	g.Go(func() error {
		return drainTerminal(ctx, s, w, interval, done)
	})

	err := g.Wait()
	return state, err
}
