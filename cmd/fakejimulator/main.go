// Package main provides fakejimulator, a stand-in for the jimulator process
// that speaks its stdin/stdout protocol without executing ARM code.
//
// It is used by end-to-end tests and for trying the iguana CLI without a
// real simulator installed.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iguana-debugger/libiguana/emu"
)

var (
	pingReply = flag.String("ping", "PONG", "4-byte reply to the ping command")
	statuses  = flag.String("status", "",
		"comma-separated scripted status replies, each CODE[:REMAINING[:SINCE_RESET]] in hex:dec:dec")
	outputs []string
)

func main() {
	flag.Func("output", "terminal output fragment (repeatable)", func(s string) error {
		outputs = append(outputs, s)
		return nil
	})
	flag.Parse()

	script, err := parseStatusScript(*statuses)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakejimulator: %v\n", err)
		os.Exit(2)
	}

	srv := emu.NewServer(
		emu.WithPingReply(*pingReply),
		emu.WithStatusScript(script...),
		emu.WithTerminalOutput(outputs...),
	)

	if err := srv.Serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fakejimulator: %v\n", err)
		os.Exit(1)
	}
}

// parseStatusScript parses entries like "80" or "44:0:1234".
func parseStatusScript(list string) ([]emu.StatusReply, error) {
	if list == "" {
		return nil, nil
	}

	var replies []emu.StatusReply
	for _, entry := range strings.Split(list, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) > 3 {
			return nil, fmt.Errorf("bad status entry %q", entry)
		}

		code, err := strconv.ParseUint(parts[0], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad status code %q: %w", parts[0], err)
		}
		reply := emu.StatusReply{Code: byte(code)}

		if len(parts) > 1 {
			n, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("bad steps remaining %q: %w", parts[1], err)
			}
			reply.StepsRemaining = uint32(n)
		}
		if len(parts) > 2 {
			n, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("bad steps since reset %q: %w", parts[2], err)
			}
			reply.StepsSinceReset = uint32(n)
		}

		replies = append(replies, reply)
	}

	return replies, nil
}
