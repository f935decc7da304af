// Package kmd provides the token model and parser for .kmd program images
// produced by the aasm assembler.
package kmd

import "encoding/binary"

// Token is one unit of a parsed image: a Tag, a Label or a Line.
type Token interface {
	isToken()
}

// Tag is a section marker such as "KMD" or "SYMBOL_TABLE".
type Tag struct {
	Name string
}

// Label is a symbol table entry.
type Label struct {
	// Name is the symbol name.
	Name string
	// Address is the memory address the symbol refers to.
	Address uint32
	// Exported is true for global symbols.
	Exported bool
	// Thumb is true when the symbol points at Thumb code.
	Thumb bool
}

// Line is an address/word/comment line of the listing. Either the address or
// the word may be absent.
type Line struct {
	Address    uint32
	HasAddress bool
	// Word is nil when the line carries no data.
	Word    Word
	Comment string
}

func (Tag) isToken()   {}
func (Label) isToken() {}
func (Line) isToken()  {}

// Word is the content of a line: an Instruction or a Data blob.
type Word interface {
	// Bytes returns the bytes to store, in memory order.
	Bytes() []byte
}

// Instruction is a 32-bit instruction in memory (little-endian) order.
type Instruction [4]byte

// NewInstruction creates an Instruction from its numeric encoding.
func NewInstruction(value uint32) Instruction {
	var i Instruction
	binary.LittleEndian.PutUint32(i[:], value)
	return i
}

// Bytes implements Word.
func (i Instruction) Bytes() []byte {
	return i[:]
}

// Value returns the numeric encoding of the instruction.
func (i Instruction) Value() uint32 {
	return binary.LittleEndian.Uint32(i[:])
}

// Data is a variable-length blob.
type Data []byte

// Bytes implements Word.
func (d Data) Bytes() []byte {
	return d
}
