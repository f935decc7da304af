package emu

import "encoding/binary"

// Memory is a sparse byte-addressed memory. Unwritten bytes read as 0.
type Memory struct {
	data map[uint32]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{data: make(map[uint32]byte)}
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) byte {
	return m.data[addr]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, value byte) {
	m.data[addr] = value
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(m.ReadBytes(addr, 4))
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	m.WriteBytes(addr, buf[:])
}

// ReadBytes reads n consecutive bytes.
func (m *Memory) ReadBytes(addr uint32, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = m.data[addr+uint32(i)]
	}
	return buf
}

// WriteBytes writes data starting at addr.
func (m *Memory) WriteBytes(addr uint32, data []byte) {
	for i, b := range data {
		m.data[addr+uint32(i)] = b
	}
}
