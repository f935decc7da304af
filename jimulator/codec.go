package jimulator

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Memory access opcodes are bit-packed: a family marker, a space selector,
// a direction bit and an element-size class.
const (
	opMemory byte = 0x40

	spaceMemory    byte = 0x00
	spaceRegisters byte = 0x10

	dirWrite byte = 0x00
	dirRead  byte = 0x08

	sizeByte byte = 0x00
	sizeWord byte = 0x02
)

// Fixed command opcodes.
const (
	OpPing          byte = 0x01
	OpReset         byte = 0x04
	OpTerminalWrite byte = 0x12
	OpTerminalRead  byte = 0x13
	OpStatus        byte = 0x20
	OpStop          byte = 0x21
	OpPause         byte = 0x22
	OpDefineTrap    byte = 0x30
	OpStart         byte = 0xB0

	// OpContinue shares its wire code with OpPause.
	OpContinue = OpPause

	OpReadWord      = opMemory | spaceMemory | dirRead | sizeWord
	OpReadBytes     = opMemory | spaceMemory | dirRead | sizeByte
	OpWriteBytes    = opMemory | spaceMemory | dirWrite | sizeByte
	OpReadRegisters = opMemory | spaceRegisters | dirRead | sizeWord
)

// Response sizes.
const (
	PingResponseLength   = 4
	WordResponseLength   = 4
	StatusResponseLength = 9
	RegisterBufferLength = 4 * NumRegisters
)

// TerminalChunkSize is the largest payload one terminal write can carry,
// bounded by its one-byte length field.
const TerminalChunkSize = math.MaxUint8

// terminalReadMax is the fragment size requested by each terminal read.
const terminalReadMax byte = 0x20

// Trap definition constants.
const (
	trapConditionMask byte   = 0xFF
	trapSizeMask      byte   = 0x0F
	trapUpperBound    uint32 = 0xFFFFFFFF
	trapReservedBytes        = 8
)

// EncodePing encodes the ping command.
func EncodePing() []byte {
	return []byte{OpPing}
}

// EncodeReadWord encodes a single 32-bit memory read at addr.
func EncodeReadWord(addr uint32) []byte {
	return encodeMemoryHeader(OpReadWord, addr, 1)
}

// EncodeReadBytes encodes a read of n bytes starting at addr.
func EncodeReadBytes(addr uint32, n int) ([]byte, error) {
	count, err := checkUint16(n)
	if err != nil {
		return nil, err
	}
	return encodeMemoryHeader(OpReadBytes, addr, count), nil
}

// EncodeWriteMemory encodes a write of payload to memory at addr. Payloads
// longer than 65535 bytes fail before any bytes are produced.
func EncodeWriteMemory(addr uint32, payload []byte) ([]byte, error) {
	count, err := checkUint16(len(payload))
	if err != nil {
		return nil, err
	}
	buf := encodeMemoryHeader(OpWriteBytes, addr, count)
	return append(buf, payload...), nil
}

// EncodeReadRegisters encodes a read of all sixteen registers.
func EncodeReadRegisters() []byte {
	return encodeMemoryHeader(OpReadRegisters, 0, NumRegisters)
}

// EncodeStatus encodes a board status query.
func EncodeStatus() []byte {
	return []byte{OpStatus}
}

// EncodeStart encodes a start command. A step count of 0 runs unbounded.
func EncodeStart(steps uint32) []byte {
	return binary.LittleEndian.AppendUint32([]byte{OpStart}, steps)
}

// EncodeStop encodes the stop command.
func EncodeStop() []byte {
	return []byte{OpStop}
}

// EncodePause encodes the pause command.
func EncodePause() []byte {
	return []byte{OpPause}
}

// EncodeContinue encodes the continue command. The bytes are identical to
// EncodePause; the simulator does not distinguish the two.
func EncodeContinue() []byte {
	return []byte{OpContinue}
}

// EncodeReset encodes the reset command.
func EncodeReset() []byte {
	return []byte{OpReset}
}

// EncodeDefineTrap encodes a trap covering addr upwards in the given slot.
func EncodeDefineTrap(slot uint8, addr uint32) []byte {
	buf := make([]byte, 0, 4+4+4+trapReservedBytes)
	buf = append(buf, OpDefineTrap, slot, trapConditionMask, trapSizeMask)
	buf = binary.LittleEndian.AppendUint32(buf, addr)
	buf = binary.LittleEndian.AppendUint32(buf, trapUpperBound)
	return append(buf, make([]byte, trapReservedBytes)...)
}

// EncodeRemoveTrap encodes the removal of a trap slot.
//
// Unlike every other command this one has no opcode byte: it is a zero
// "disable" word followed by the slot index as a 32-bit value.
func EncodeRemoveTrap(slot uint8) []byte {
	buf := make([]byte, 4, 8)
	return binary.LittleEndian.AppendUint32(buf, uint32(slot))
}

// EncodeTerminalRead encodes a request for the next terminal fragment.
func EncodeTerminalRead() []byte {
	return []byte{OpTerminalRead, 0x00, terminalReadMax}
}

// EncodeTerminalWrite frames a single terminal chunk of at most
// TerminalChunkSize bytes.
func EncodeTerminalWrite(chunk []byte) ([]byte, error) {
	if len(chunk) > TerminalChunkSize {
		return nil, fmt.Errorf("terminal chunk of %d bytes: %w", len(chunk), ErrIntegerOverflow)
	}
	buf := make([]byte, 0, 3+len(chunk))
	buf = append(buf, OpTerminalWrite, 0x00, byte(len(chunk)))
	return append(buf, chunk...), nil
}

// ChunkTerminal splits msg into pieces that fit a terminal write. An empty
// message yields no chunks.
func ChunkTerminal(msg []byte) [][]byte {
	var chunks [][]byte
	for len(msg) > 0 {
		n := min(len(msg), TerminalChunkSize)
		chunks = append(chunks, msg[:n])
		msg = msg[n:]
	}
	return chunks
}

// DecodePing decodes the ping response as UTF-8 text.
func DecodePing(buf []byte) (string, error) {
	if !utf8.Valid(buf) {
		return "", ErrInvalidUTF8
	}
	return string(buf), nil
}

// DecodeWord decodes a little-endian 32-bit word.
func DecodeWord(buf []byte) (uint32, error) {
	if len(buf) != WordResponseLength {
		return 0, fmt.Errorf("word response of %d bytes: %w", len(buf), ErrResponseLength)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// DecodeRegisters decodes a register dump. The buffer must be exactly
// RegisterBufferLength bytes.
func DecodeRegisters(buf []byte) (Registers, error) {
	if len(buf) != RegisterBufferLength {
		return Registers{}, &InvalidRegisterBufferLengthError{Length: len(buf)}
	}

	var words [NumRegisters]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}

	return RegistersFromWords(words), nil
}

// DecodeBoardState decodes a status response.
func DecodeBoardState(buf []byte) (BoardState, error) {
	if len(buf) != StatusResponseLength {
		return BoardState{}, fmt.Errorf("status response of %d bytes: %w", len(buf), ErrResponseLength)
	}

	status, err := ParseStatus(buf[0])
	if err != nil {
		return BoardState{}, err
	}

	return BoardState{
		Status:          status,
		StepsRemaining:  binary.LittleEndian.Uint32(buf[1:5]),
		StepsSinceReset: binary.LittleEndian.Uint32(buf[5:9]),
	}, nil
}

func encodeMemoryHeader(op byte, addr uint32, count uint16) []byte {
	buf := make([]byte, 0, 7)
	buf = append(buf, op)
	buf = binary.LittleEndian.AppendUint32(buf, addr)
	return binary.LittleEndian.AppendUint16(buf, count)
}

func checkUint16(n int) (uint16, error) {
	if n < 0 || n > math.MaxUint16 {
		return 0, fmt.Errorf("length %d does not fit 16 bits: %w", n, ErrIntegerOverflow)
	}
	return uint16(n), nil
}
