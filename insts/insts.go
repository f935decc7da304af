// Package insts provides ARM instruction decoding for display.
//
// Words are decoded as 32-bit ARM (A32) instructions and rendered in GNU
// assembler syntax.
//
// Usage:
//
//	text, err := insts.Decode(0xE3A00001) // mov r0, #1
package insts
