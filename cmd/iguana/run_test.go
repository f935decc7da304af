package main

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/iguana-debugger/libiguana/jimulator"
)

type scriptedBoard struct {
	mu       sync.Mutex
	statuses []jimulator.BoardState
	output   [][]byte
	err      error
}

func (b *scriptedBoard) Status() (jimulator.BoardState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return jimulator.BoardState{}, b.err
	}
	if len(b.statuses) == 1 {
		return b.statuses[0], nil
	}
	s := b.statuses[0]
	b.statuses = b.statuses[1:]
	return s, nil
}

func (b *scriptedBoard) TerminalMessages() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := bytes.Join(b.output, nil)
	b.output = nil
	return msg, nil
}

func running(n int) []jimulator.BoardState {
	states := make([]jimulator.BoardState, n)
	for i := range states {
		states[i] = jimulator.BoardState{Status: jimulator.StatusRunning}
	}
	return states
}

var _ = Describe("waitForStop", func() {
	It("should poll until the board stops", func() {
		board := &scriptedBoard{statuses: append(running(3),
			jimulator.BoardState{Status: jimulator.StatusFinished, StepsSinceReset: 1234})}

		state, polls, err := waitForStop(context.Background(), board, time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(polls).To(Equal(4))
		Expect(state.Status).To(Equal(jimulator.StatusFinished))
		Expect(state.StepsSinceReset).To(Equal(uint32(1234)))
	})

	It("should return immediately for a stopped board", func() {
		board := &scriptedBoard{statuses: []jimulator.BoardState{{Status: jimulator.StatusBreakpoint}}}

		_, polls, err := waitForStop(context.Background(), board, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		Expect(polls).To(Equal(1))
	})

	It("should give up when the context ends", func() {
		board := &scriptedBoard{statuses: running(1)}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, _, err := waitForStop(ctx, board, time.Millisecond)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("should return status errors", func() {
		boom := errors.New("boom")
		board := &scriptedBoard{err: boom}

		_, _, err := waitForStop(context.Background(), board, time.Millisecond)
		Expect(err).To(MatchError(boom))
	})
})

var _ = Describe("runToStop", func() {
	It("should stream output produced while running and after the stop", func() {
		board := &scriptedBoard{
			statuses: append(running(3), jimulator.BoardState{Status: jimulator.StatusFinished}),
			output:   [][]byte{[]byte("Hello, "), []byte("world"), []byte("!\n")},
		}

		var out bytes.Buffer
		state, err := runToStop(context.Background(), board, &out, time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Status).To(Equal(jimulator.StatusFinished))
		Expect(out.String()).To(Equal("Hello, world!\n"))
	})
})

var _ = Describe("report", func() {
	It("should render a plain report with the next instruction", func() {
		regs := jimulator.RegistersFromWords([jimulator.NumRegisters]uint32{
			0: 5, 13: 0x10000, 14: 0x8008, 15: 0x8004,
		})
		text := plainReport(
			jimulator.BoardState{Status: jimulator.StatusFinished, StepsSinceReset: 2},
			regs, "svc 0x00000002")

		Expect(text).To(ContainSubstring("status: Finished"))
		Expect(text).To(ContainSubstring("2 since reset"))
		Expect(text).To(ContainSubstring("r0  00000005"))
		Expect(text).To(ContainSubstring("sp  00010000"))
		Expect(text).To(ContainSubstring("pc  00008004"))
		Expect(text).To(ContainSubstring("next:   00008004  svc 0x00000002"))
	})
})

var _ = Describe("helpers", func() {
	DescribeTable("parseAddr",
		func(in string, want uint32) {
			Expect(parseAddr(in)).To(Equal(want))
		},
		Entry("bare", "8000", uint32(0x8000)),
		Entry("prefixed", "0x8000", uint32(0x8000)),
		Entry("upper prefix", "0XFFFFFFFF", uint32(0xFFFFFFFF)),
	)

	It("should reject bad addresses", func() {
		_, err := parseAddr("zz")
		Expect(err).To(HaveOccurred())
		_, err = parseAddr("100000000")
		Expect(err).To(HaveOccurred())
	})

	It("should recognise assembly sources", func() {
		Expect(isAssembly("prog.s")).To(BeTrue())
		Expect(isAssembly("PROG.S")).To(BeTrue())
		Expect(isAssembly("prog.asm")).To(BeTrue())
		Expect(isAssembly("prog.kmd")).To(BeFalse())
	})
})
