package insts

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm/armasm"
)

// Decode disassembles one ARM instruction word.
func Decode(word uint32) (string, error) {
	inst, err := DecodeInst(word)
	if err != nil {
		return "", err
	}
	return armasm.GNUSyntax(inst), nil
}

// DecodeInst decodes one ARM instruction word into its structured form.
func DecodeInst(word uint32) (armasm.Inst, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)

	inst, err := armasm.Decode(buf[:], armasm.ModeARM)
	if err != nil {
		return armasm.Inst{}, fmt.Errorf("failed to decode 0x%08x: %w", word, err)
	}

	return inst, nil
}

// DecodeOrWord disassembles word, falling back to a ".word" directive for
// encodings that do not decode.
func DecodeOrWord(word uint32) string {
	text, err := Decode(word)
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", word)
	}
	return text
}
