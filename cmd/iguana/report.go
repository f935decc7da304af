package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/iguana-debugger/libiguana/insts"
	"github.com/iguana-debugger/libiguana/jimulator"
)

type reportSource interface {
	Registers() (jimulator.Registers, error)
	ReadWord(addr uint32) (uint32, error)
}

// report prints the final board state, registers and the instruction at PC.
func report(w io.Writer, s reportSource, state jimulator.BoardState) error {
	regs, err := s.Registers()
	if err != nil {
		return err
	}

	next := "?"
	if word, err := s.ReadWord(regs.PC); err == nil {
		next = insts.DecodeOrWord(word)
	}

	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}

	if styled {
		body := renderState(state, regs) + "\n" + labelStyle.Render("next  ") + " " +
			valueStyle.Render(fmt.Sprintf("%08x  %s", regs.PC, next))
		fmt.Fprintln(w, panelStyle.Render(body))
		return nil
	}

	fmt.Fprint(w, plainReport(state, regs, next))
	return nil
}

func plainReport(state jimulator.BoardState, regs jimulator.Registers, next string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", state.Status)
	fmt.Fprintf(&b, "steps:  %d since reset, %d remaining\n", state.StepsSinceReset, state.StepsRemaining)
	b.WriteString(formatRegisters(regs))
	fmt.Fprintf(&b, "next:   %08x  %s\n", regs.PC, next)
	return b.String()
}

func formatRegisters(regs jimulator.Registers) string {
	var b strings.Builder
	for i := 0; i < jimulator.NumRegisters; i++ {
		fmt.Fprintf(&b, "%-3s %08x", regName(i), regs.Reg(i))
		if i%4 == 3 {
			b.WriteByte('\n')
		} else {
			b.WriteString("  ")
		}
	}
	return b.String()
}

func regName(i int) string {
	switch i {
	case 13:
		return "sp"
	case 14:
		return "lr"
	case 15:
		return "pc"
	}
	return fmt.Sprintf("r%d", i)
}

func statusStyle(s jimulator.Status) string {
	switch {
	case s.IsRunning():
		return runningStyle.Render(s.String())
	case s == jimulator.StatusMemfault || s == jimulator.StatusBroken:
		return faultStyle.Render(s.String())
	}
	return stoppedStyle.Render(s.String())
}

func renderState(state jimulator.BoardState, regs jimulator.Registers) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("jimulator"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("status"), statusStyle(state.Status))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("steps "),
		valueStyle.Render(fmt.Sprintf("%d since reset, %d remaining", state.StepsSinceReset, state.StepsRemaining)))
	b.WriteString(valueStyle.Render(strings.TrimSuffix(formatRegisters(regs), "\n")))
	return b.String()
}
