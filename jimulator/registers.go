package jimulator

// NumRegisters is the number of registers returned by a register read.
const NumRegisters = 16

// NumGeneralRegisters is the number of general-purpose registers (r0-r12).
const NumGeneralRegisters = 13

// Registers is a snapshot of the ARM register file.
type Registers struct {
	// R holds the general-purpose registers r0-r12.
	R [NumGeneralRegisters]uint32

	// R13 is the stack pointer.
	R13 uint32

	// R14 is the link register.
	R14 uint32

	// PC is the program counter.
	PC uint32
}

// RegistersFromWords builds a snapshot from words in wire order
// (r0..r12, r13, r14, pc).
func RegistersFromWords(words [NumRegisters]uint32) Registers {
	var r Registers
	copy(r.R[:], words[:NumGeneralRegisters])
	r.R13 = words[13]
	r.R14 = words[14]
	r.PC = words[15]
	return r
}

// Words returns the registers in wire order.
func (r Registers) Words() [NumRegisters]uint32 {
	var words [NumRegisters]uint32
	copy(words[:], r.R[:])
	words[13] = r.R13
	words[14] = r.R14
	words[15] = r.PC
	return words
}

// Reg returns register n (0-15), with 15 being the PC.
// Out-of-range indices read as 0.
func (r Registers) Reg(n int) uint32 {
	if n < 0 || n >= NumRegisters {
		return 0
	}
	return r.Words()[n]
}
