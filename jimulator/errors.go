package jimulator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStdin is returned when the simulator's input stream is unavailable.
	ErrNoStdin = errors.New("jimulator process has no stdin")

	// ErrNoStdout is returned when the simulator's output stream is unavailable.
	ErrNoStdout = errors.New("jimulator process has no stdout")

	// ErrInvalidUTF8 is returned when a text response is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("a string that was not valid UTF-8 was returned")

	// ErrParse is returned when a .kmd image fails to parse.
	ErrParse = errors.New("the given kmd file failed to parse")

	// ErrIntegerOverflow is returned when a length does not fit its wire field.
	ErrIntegerOverflow = errors.New("an integer overflow occurred")

	// ErrTooManyTraps is returned when every trap slot is in use.
	ErrTooManyTraps = errors.New("no free trap slots")

	// ErrNoTrapForAddress is returned when removing a trap that was never defined.
	ErrNoTrapForAddress = errors.New("no trap defined for address")

	// ErrResponseLength is returned when a fixed-size response has the wrong size.
	ErrResponseLength = errors.New("response has an unexpected length")

	// ErrClosed is returned by operations on a session that has been closed.
	ErrClosed = errors.New("session is closed")
)

// InvalidStatusError reports a status byte outside the known set.
type InvalidStatusError struct {
	Code byte
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("jimulator returned an invalid status 0x%02x", e.Code)
}

// InvalidRegisterBufferLengthError reports a register response of the wrong size.
type InvalidRegisterBufferLengthError struct {
	Length int
}

func (e *InvalidRegisterBufferLengthError) Error() string {
	return fmt.Sprintf("the register buffer has an invalid size %d (want %d)",
		e.Length, RegisterBufferLength)
}
