package jimulator

import "fmt"

// Status is the run state reported by the simulator.
type Status byte

// Known status codes. Any other byte is rejected by ParseStatus.
const (
	StatusNormal     Status = 0x00
	StatusBusy       Status = 0x01
	StatusBroken     Status = 0x30
	StatusStopped    Status = 0x40
	StatusBreakpoint Status = 0x41
	StatusMemfault   Status = 0x43
	StatusFinished   Status = 0x44
	StatusRunning    Status = 0x80
	StatusRunningSWI Status = 0x81
	StatusStepping   Status = 0x82
)

var statusNames = map[Status]string{
	StatusNormal:     "Normal",
	StatusBusy:       "Busy",
	StatusBroken:     "Broken",
	StatusStopped:    "Stopped",
	StatusBreakpoint: "Breakpoint",
	StatusMemfault:   "Memfault",
	StatusFinished:   "Finished",
	StatusRunning:    "Running",
	StatusRunningSWI: "RunningSwi",
	StatusStepping:   "Stepping",
}

// ParseStatus converts a raw status byte into a Status.
func ParseStatus(code byte) (Status, error) {
	s := Status(code)
	if _, ok := statusNames[s]; !ok {
		return 0, &InvalidStatusError{Code: code}
	}
	return s, nil
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(0x%02x)", byte(s))
}

// IsRunning reports whether the simulator is still executing instructions.
func (s Status) IsRunning() bool {
	switch s {
	case StatusRunning, StatusRunningSWI, StatusStepping, StatusBusy:
		return true
	}
	return false
}

// BoardState is a snapshot of the simulator's run state.
type BoardState struct {
	Status Status

	// StepsRemaining is meaningful while running with a finite step budget.
	StepsRemaining uint32

	// StepsSinceReset counts instructions executed since the last reset.
	StepsSinceReset uint32
}
