package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/howeyc/fsnotify"

	"github.com/iguana-debugger/libiguana/jimulator"
)

type watchCmd struct {
	File string `arg:"" type:"existingfile" help:"Assembly source file to watch."`
}

func (w *watchCmd) Run(g *Globals) error {
	src := filepath.Clean(w.File)

	s, cfg, log, err := g.open()
	if err != nil {
		return err
	}
	defer s.Close()
	log = log.WithName("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(src)); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var (
		cancel = func() {}
		done   = make(chan struct{})
		run    = time.After(1 * time.Millisecond)
	)
	close(done)

	for {
		select {
		case <-run:
			cancel()
			<-done

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})
			go func(done chan struct{}) {
				defer close(done)
				if err := rebuild(ctx, s, src, cfg.PollInterval(), log); err != nil {
					log.Error(err, "run failed", "file", filepath.Base(src))
				}
			}(done)
		case ev := <-watcher.Event:
			if ev.Name == src && !ev.IsAttrib() {
				run = time.After(100 * time.Millisecond)
			}
		case err := <-watcher.Error:
			log.Error(err, "watcher")
		case <-interrupt:
			cancel()
			<-done
			return nil
		}
	}
}

// rebuild assembles src, reloads it into a freshly reset simulator and runs
// it until it stops or ctx is cancelled.
func rebuild(ctx context.Context, s *jimulator.Session, src string, interval time.Duration, log logr.Logger) error {
	log.Info("build", "file", filepath.Base(src))

	text, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	res, err := s.CompileAasm(string(text))
	if err != nil {
		return err
	}
	if res.Terminal != "" {
		fmt.Fprint(os.Stderr, res.Terminal)
	}

	if err := s.Reset(); err != nil {
		return err
	}
	if _, err := s.LoadKMD(res.KMD); err != nil {
		return err
	}
	if err := s.Start(0); err != nil {
		return err
	}

	state, err := runToStop(ctx, s, os.Stdout, interval)
	if errors.Is(err, context.Canceled) {
		log.Info("restart")
		return s.Stop()
	}
	if err != nil {
		return err
	}

	return report(os.Stdout, s, state)
}
