// Package main provides the entry point for libiguana.
// libiguana drives the jimulator ARM simulator over its stdin/stdout protocol.
//
// For the full CLI, use: go run ./cmd/iguana
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("iguana - jimulator ARM simulator driver")
	fmt.Println("")
	fmt.Println("Usage: iguana [flags] <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ping              Check that jimulator responds")
	fmt.Println("  run <program>     Load a .kmd or .s program and run it")
	fmt.Println("  compile <file.s>  Assemble a source file with aasm")
	fmt.Println("  dis <word>...     Disassemble instruction words")
	fmt.Println("  tui <program>     Interactive monitor")
	fmt.Println("  watch <file.s>    Re-run a source file whenever it changes")
	fmt.Println("")
	fmt.Println("Flags:")
	fmt.Println("  --config     Path to JSON configuration file")
	fmt.Println("  --jimulator  Path to the jimulator executable")
	fmt.Println("  -v           Increase log verbosity")
	fmt.Println("  --trace      Log every command exchanged with jimulator")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/iguana --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/iguana' instead.")
	}
}
