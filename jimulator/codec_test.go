package jimulator_test

import (
	"bytes"
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/iguana-debugger/libiguana/jimulator"
)

var _ = Describe("Codec", func() {
	Describe("Encoding", func() {
		It("should encode ping as a single byte", func() {
			Expect(jimulator.EncodePing()).To(Equal([]byte{0x01}))
		})

		It("should encode a word read with the address and a count of one", func() {
			Expect(jimulator.EncodeReadWord(0x12345678)).To(Equal(
				[]byte{0x4A, 0x78, 0x56, 0x34, 0x12, 0x01, 0x00}))
		})

		It("should encode a byte read with a 16-bit count", func() {
			req, err := jimulator.EncodeReadBytes(0x8000, 0x120)
			Expect(err).NotTo(HaveOccurred())
			Expect(req).To(Equal([]byte{0x48, 0x00, 0x80, 0x00, 0x00, 0x20, 0x01}))
		})

		It("should encode a memory write with its payload", func() {
			req, err := jimulator.EncodeWriteMemory(0x100, []byte{0xDE, 0xAD})
			Expect(err).NotTo(HaveOccurred())
			Expect(req).To(Equal([]byte{0x40, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00, 0xDE, 0xAD}))
		})

		It("should accept a write of exactly 65535 bytes", func() {
			req, err := jimulator.EncodeWriteMemory(0, make([]byte, 0xFFFF))
			Expect(err).NotTo(HaveOccurred())
			Expect(req[5:7]).To(Equal([]byte{0xFF, 0xFF}))
			Expect(req).To(HaveLen(7 + 0xFFFF))
		})

		It("should reject a write of 65536 bytes", func() {
			req, err := jimulator.EncodeWriteMemory(0, make([]byte, 0x10000))
			Expect(err).To(MatchError(jimulator.ErrIntegerOverflow))
			Expect(req).To(BeNil())
		})

		It("should encode the register read", func() {
			Expect(jimulator.EncodeReadRegisters()).To(Equal(
				[]byte{0x5A, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00}))
		})

		It("should encode start with a little-endian step count", func() {
			Expect(jimulator.EncodeStart(0)).To(Equal([]byte{0xB0, 0, 0, 0, 0}))
			Expect(jimulator.EncodeStart(0x01020304)).To(Equal([]byte{0xB0, 0x04, 0x03, 0x02, 0x01}))
		})

		It("should encode the single-byte control commands", func() {
			Expect(jimulator.EncodeStatus()).To(Equal([]byte{0x20}))
			Expect(jimulator.EncodeStop()).To(Equal([]byte{0x21}))
			Expect(jimulator.EncodePause()).To(Equal([]byte{0x22}))
			Expect(jimulator.EncodeReset()).To(Equal([]byte{0x04}))
		})

		It("should encode continue identically to pause", func() {
			Expect(jimulator.EncodeContinue()).To(Equal(jimulator.EncodePause()))
		})

		It("should encode a trap definition", func() {
			want := []byte{
				0x30, 0x07, 0xFF, 0x0F,
				0x00, 0x10, 0x00, 0x00,
				0xFF, 0xFF, 0xFF, 0xFF,
				0, 0, 0, 0, 0, 0, 0, 0,
			}
			got := jimulator.EncodeDefineTrap(7, 0x1000)
			Expect(cmp.Diff(want, got)).To(BeEmpty())
		})

		It("should encode a trap removal without an opcode byte", func() {
			Expect(jimulator.EncodeRemoveTrap(3)).To(Equal(
				[]byte{0x00, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00}))
			Expect(jimulator.EncodeRemoveTrap(254)).To(Equal(
				[]byte{0x00, 0x00, 0x00, 0x00, 0xFE, 0x00, 0x00, 0x00}))
		})

		It("should encode a terminal read request", func() {
			Expect(jimulator.EncodeTerminalRead()).To(Equal([]byte{0x13, 0x00, 0x20}))
		})

		It("should frame a terminal write", func() {
			req, err := jimulator.EncodeTerminalWrite([]byte("hi"))
			Expect(err).NotTo(HaveOccurred())
			Expect(req).To(Equal([]byte{0x12, 0x00, 0x02, 'h', 'i'}))
		})

		It("should reject an oversized terminal chunk", func() {
			_, err := jimulator.EncodeTerminalWrite(make([]byte, 256))
			Expect(err).To(MatchError(jimulator.ErrIntegerOverflow))
		})
	})

	Describe("Terminal chunking", func() {
		DescribeTable("should split into ceil(L/255) chunks",
			func(length, chunks int) {
				msg := bytes.Repeat([]byte{'a'}, length)
				got := jimulator.ChunkTerminal(msg)
				Expect(got).To(HaveLen(chunks))
				Expect(bytes.Join(got, nil)).To(Equal(msg))
				for _, c := range got {
					Expect(len(c)).To(BeNumerically("<=", jimulator.TerminalChunkSize))
				}
			},
			Entry("empty", 0, 0),
			Entry("one byte", 1, 1),
			Entry("exactly one chunk", 255, 1),
			Entry("one over", 256, 2),
			Entry("three chunks", 600, 3),
		)
	})

	Describe("Decoding", func() {
		It("should decode a ping reply", func() {
			s, err := jimulator.DecodePing([]byte("PONG"))
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal("PONG"))
		})

		It("should reject a non-UTF-8 ping reply", func() {
			_, err := jimulator.DecodePing([]byte{0xFF, 0xFE, 0x00, 0x00})
			Expect(err).To(MatchError(jimulator.ErrInvalidUTF8))
		})

		It("should decode a little-endian word", func() {
			w, err := jimulator.DecodeWord([]byte{0x78, 0x56, 0x34, 0x12})
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(uint32(0x12345678)))
		})

		It("should reject a short word", func() {
			_, err := jimulator.DecodeWord([]byte{0x01})
			Expect(err).To(MatchError(jimulator.ErrResponseLength))
		})

		It("should decode sixteen registers", func() {
			buf := make([]byte, jimulator.RegisterBufferLength)
			for i := 0; i < jimulator.NumRegisters; i++ {
				buf[i*4] = byte(i + 1)
			}

			regs, err := jimulator.DecodeRegisters(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(regs.R[0]).To(Equal(uint32(1)))
			Expect(regs.R[12]).To(Equal(uint32(13)))
			Expect(regs.R13).To(Equal(uint32(14)))
			Expect(regs.R14).To(Equal(uint32(15)))
			Expect(regs.PC).To(Equal(uint32(16)))
		})

		It("should reject a register buffer of the wrong size", func() {
			_, err := jimulator.DecodeRegisters(make([]byte, 60))

			var lenErr *jimulator.InvalidRegisterBufferLengthError
			Expect(errors.As(err, &lenErr)).To(BeTrue())
			Expect(lenErr.Length).To(Equal(60))
		})

		It("should decode a board state", func() {
			state, err := jimulator.DecodeBoardState(
				[]byte{0x44, 0x00, 0x00, 0x00, 0x00, 0xD2, 0x04, 0x00, 0x00})
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(jimulator.BoardState{
				Status:          jimulator.StatusFinished,
				StepsRemaining:  0,
				StepsSinceReset: 1234,
			}))
		})

		It("should reject a short buffer and an unknown status byte", func() {
			_, err := jimulator.DecodeBoardState([]byte{0x44})
			Expect(err).To(MatchError(jimulator.ErrResponseLength))

			_, err = jimulator.DecodeBoardState([]byte{0x55, 0, 0, 0, 0, 0, 0, 0, 0})
			var statusErr *jimulator.InvalidStatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Code).To(Equal(byte(0x55)))
		})
	})
})

var _ = Describe("Status", func() {
	DescribeTable("should parse every known code",
		func(code byte, want jimulator.Status, name string, running bool) {
			s, err := jimulator.ParseStatus(code)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(want))
			Expect(s.String()).To(Equal(name))
			Expect(s.IsRunning()).To(Equal(running))
		},
		Entry("normal", byte(0x00), jimulator.StatusNormal, "Normal", false),
		Entry("busy", byte(0x01), jimulator.StatusBusy, "Busy", true),
		Entry("broken", byte(0x30), jimulator.StatusBroken, "Broken", false),
		Entry("stopped", byte(0x40), jimulator.StatusStopped, "Stopped", false),
		Entry("breakpoint", byte(0x41), jimulator.StatusBreakpoint, "Breakpoint", false),
		Entry("memfault", byte(0x43), jimulator.StatusMemfault, "Memfault", false),
		Entry("finished", byte(0x44), jimulator.StatusFinished, "Finished", false),
		Entry("running", byte(0x80), jimulator.StatusRunning, "Running", true),
		Entry("running swi", byte(0x81), jimulator.StatusRunningSWI, "RunningSwi", true),
		Entry("stepping", byte(0x82), jimulator.StatusStepping, "Stepping", true),
	)

	It("should reject codes outside the set", func() {
		for _, code := range []byte{0x02, 0x42, 0x83, 0xFF} {
			_, err := jimulator.ParseStatus(code)
			Expect(err).To(MatchError(&jimulator.InvalidStatusError{Code: code}))
		}
	})
})

var _ = Describe("Registers", func() {
	It("should round-trip through words", func() {
		var words [jimulator.NumRegisters]uint32
		for i := range words {
			words[i] = uint32(i) * 0x11111111
		}

		regs := jimulator.RegistersFromWords(words)
		Expect(regs.Words()).To(Equal(words))
		for i := range words {
			Expect(regs.Reg(i)).To(Equal(words[i]))
		}
	})
})
