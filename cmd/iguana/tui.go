package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"

	"github.com/iguana-debugger/libiguana/insts"
	"github.com/iguana-debugger/libiguana/jimulator"
)

type tuiCmd struct {
	File string `arg:"" type:"existingfile" help:"Program to load (.kmd listing or .s source)."`
}

func (t *tuiCmd) Run(g *Globals) error {
	s, cfg, log, err := g.open()
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := loadSource(s, t.File); err != nil {
		return err
	}

	m := newMonitor(s, cfg.PollInterval(), log)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

const maxOutput = 4096

type tickMsg time.Time

type refreshMsg struct {
	state  jimulator.BoardState
	regs   jimulator.Registers
	code   []string
	output []byte
	err    error
}

type actionMsg struct {
	note string
	err  error
}

type monitor struct {
	s        *jimulator.Session
	interval time.Duration
	log      logr.Logger

	state  jimulator.BoardState
	regs   jimulator.Registers
	code   []string
	output strings.Builder
	note   string
	err    error

	width, height int
}

func newMonitor(s *jimulator.Session, interval time.Duration, log logr.Logger) *monitor {
	return &monitor{s: s, interval: interval, log: log.WithName("tui")}
}

func (m *monitor) Init() tea.Cmd {
	return tea.Batch(m.refresh, m.tick())
}

func (m *monitor) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// refresh samples the simulator. It runs off the update loop.
func (m *monitor) refresh() tea.Msg {
	var msg refreshMsg

	msg.state, msg.err = m.s.Status()
	if msg.err != nil {
		return msg
	}
	msg.regs, msg.err = m.s.Registers()
	if msg.err != nil {
		return msg
	}
	msg.output, msg.err = m.s.TerminalMessages()
	if msg.err != nil {
		return msg
	}

	pc := msg.regs.PC
	for i := uint32(0); i < 8; i++ {
		addr := pc + 4*i
		word, err := m.s.ReadWord(addr)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.code = append(msg.code, fmt.Sprintf("%08x  %08x  %s", addr, word, insts.DecodeOrWord(word)))
	}

	return msg
}

func (m *monitor) action(note string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{note: note, err: fn()}
	}
}

func (m *monitor) reload() error {
	if err := m.s.Reset(); err != nil {
		return err
	}
	prog := m.s.Program()
	if prog == nil {
		return nil
	}
	_, err := m.s.LoadProgram(prog)
	return err
}

func (m *monitor) toggleTrap() error {
	pc := m.regs.PC
	for _, t := range m.s.Traps() {
		if t.Address == pc {
			return m.s.RemoveTrap(pc)
		}
	}
	_, err := m.s.DefineTrap(pc)
	return err
}

func (m *monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		return m, tea.Batch(m.refresh, m.tick())

	case refreshMsg:
		m.err = msg.err
		if msg.err != nil {
			m.log.Error(msg.err, "refresh failed")
			return m, nil
		}
		m.state, m.regs, m.code = msg.state, msg.regs, msg.code
		m.appendOutput(msg.output)

	case actionMsg:
		m.note, m.err = msg.note, msg.err
		return m, m.refresh

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.action("run", func() error { return m.s.Start(0) })
		case "s":
			return m, m.action("step", m.s.Step)
		case "p":
			return m, m.action("pause", m.s.Pause)
		case "c":
			return m, m.action("continue", m.s.Continue)
		case "x":
			return m, m.action("stop", m.s.Stop)
		case "R":
			m.output.Reset()
			return m, m.action("reset", m.reload)
		case "b":
			return m, m.action(fmt.Sprintf("trap 0x%08x", m.regs.PC), m.toggleTrap)
		}
	}

	return m, nil
}

func (m *monitor) appendOutput(b []byte) {
	if len(b) == 0 {
		return
	}
	m.output.Write(b)
	if m.output.Len() > maxOutput {
		tail := m.output.String()[m.output.Len()-maxOutput:]
		m.output.Reset()
		m.output.WriteString(tail)
	}
}

func (m *monitor) View() string {
	state := renderState(m.state, m.regs)

	var code strings.Builder
	code.WriteString(titleStyle.Render("code"))
	code.WriteByte('\n')
	traps := make(map[uint32]bool)
	for _, t := range m.s.Traps() {
		traps[t.Address] = true
	}
	pc := m.regs.PC
	for i, line := range m.code {
		addr := pc + 4*uint32(i)
		marker := "  "
		if traps[addr] {
			marker = trapStyle.Render("● ")
		}
		if i == 0 {
			line = runningStyle.Render(line)
		}
		code.WriteString(marker + line + "\n")
	}

	out := titleStyle.Render("terminal") + "\n" + lastLines(m.output.String(), 10)

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(state),
		panelStyle.Render(strings.TrimSuffix(code.String(), "\n")),
	)

	footer := helpStyle.Render("r run  s step  p pause  c continue  x stop  R reset  b trap  q quit")
	if m.note != "" {
		footer = valueStyle.Render(m.note) + "  " + footer
	}
	if m.err != nil {
		footer = faultStyle.Render(m.err.Error()) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, panelStyle.Render(out), footer)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
