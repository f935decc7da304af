// Package emu provides a protocol-level stand-in for the jimulator process.
//
// Server answers the jimulator command set over any reader/writer pair. It
// does not execute ARM code; it keeps just enough state (memory, registers,
// board status, traps and terminal buffers) for a driver to be exercised
// end to end.
//
// Usage:
//
//	srv := emu.NewServer(emu.WithPingReply("PONG"))
//	err := srv.Serve(os.Stdin, os.Stdout)
package emu

// NumRegs is the number of registers in the file (r0-r14 and pc).
const NumRegs = 16

// PCReg is the index of the program counter.
const PCReg = 15

// RegFile represents the ARM register file.
type RegFile struct {
	// R holds r0-r14 followed by the program counter.
	R [NumRegs]uint32
}

// ReadReg reads a register value. Indices outside the file read as 0.
func (r *RegFile) ReadReg(reg int) uint32 {
	if reg < 0 || reg >= NumRegs {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a register value. Writes outside the file are ignored.
func (r *RegFile) WriteReg(reg int, value uint32) {
	if reg < 0 || reg >= NumRegs {
		return
	}
	r.R[reg] = value
}

// PC returns the program counter.
func (r *RegFile) PC() uint32 {
	return r.R[PCReg]
}

// SetPC sets the program counter.
func (r *RegFile) SetPC(pc uint32) {
	r.R[PCReg] = pc
}
