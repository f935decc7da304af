package jimulator

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"
)

// HookPosCommand is invoked after a request has been written. The hook
// context's Item is the leading request byte and Detail is the full request.
var HookPosCommand = &sim.HookPos{Name: "JimulatorCommand"}

// HookPosResponse is invoked after a response has been read. Detail holds
// the bytes read.
var HookPosResponse = &sim.HookPos{Name: "JimulatorResponse"}

// TraceHook logs every exchange on a session.
type TraceHook struct {
	log logr.Logger
}

// NewTraceHook creates a hook that logs wire traffic to log at V(2).
func NewTraceHook(log logr.Logger) *TraceHook {
	return &TraceHook{log: log.WithName("wire")}
}

// Func implements sim.Hook.
func (h *TraceHook) Func(ctx sim.HookCtx) {
	data, _ := ctx.Detail.([]byte)

	switch ctx.Pos {
	case HookPosCommand:
		h.log.V(2).Info("sent", "bytes", len(data), "data", fmt.Sprintf("% x", data))
	case HookPosResponse:
		h.log.V(2).Info("received", "bytes", len(data), "data", fmt.Sprintf("% x", data))
	}
}
