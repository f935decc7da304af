// Package jimulator drives the jimulator ARM simulator over its stdin/stdout protocol.
package jimulator

import (
	"fmt"
	"io"
)

// Channel is the byte-level link to a simulator process.
// It does no locking of its own; the Session serializes whole exchanges.
type Channel struct {
	in  io.Writer
	out io.Reader
}

// NewChannel creates a channel writing requests to in and reading responses
// from out. Either side may be nil, in which case operations needing it fail
// with ErrNoStdin or ErrNoStdout.
func NewChannel(in io.Writer, out io.Reader) *Channel {
	return &Channel{in: in, out: out}
}

// Write sends payload in full.
func (c *Channel) Write(payload []byte) error {
	if c.in == nil {
		return ErrNoStdin
	}

	n, err := c.in.Write(payload)
	if err != nil {
		return fmt.Errorf("failed to write to jimulator: %w", err)
	}
	if n != len(payload) {
		return fmt.Errorf("failed to write to jimulator: %w", io.ErrShortWrite)
	}

	return nil
}

// ReadExact blocks until exactly n bytes have been read.
func (c *Channel) ReadExact(n int) ([]byte, error) {
	if c.out == nil {
		return nil, ErrNoStdout
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(c.out, buf); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes from jimulator: %w", n, err)
	}

	return buf, nil
}

// ReadToEnd drains the output stream until it is closed.
func (c *Channel) ReadToEnd() ([]byte, error) {
	if c.out == nil {
		return nil, ErrNoStdout
	}

	buf, err := io.ReadAll(c.out)
	if err != nil {
		return buf, fmt.Errorf("failed to drain jimulator output: %w", err)
	}

	return buf, nil
}

// closeInput closes the request side if it supports closing.
func (c *Channel) closeInput() error {
	closer, ok := c.in.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}

// closeOutput closes the response side if it supports closing. A pending
// ReadExact then fails.
func (c *Channel) closeOutput() error {
	closer, ok := c.out.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}
