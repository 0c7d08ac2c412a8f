package packet

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState is a Connection's handshake phase (spec.md §3 Connection
// "handshake phase (unauth / auth_srp / world_srp / in_world)").
type SessionState int

const (
	StateUnauth SessionState = iota
	StateAuthSRP
	StateWorldSRP
	StateInWorld
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateUnauth:
		return "unauth"
	case StateAuthSRP:
		return "auth_srp"
	case StateWorldSRP:
		return "world_srp"
	case StateInWorld:
		return "in_world"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for packet handlers. The session
// value is passed as an opaque interface to avoid an import cycle between
// this package and internal/net.
type HandlerFunc func(sess any, r *Reader) error

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control
// (spec.md §4.1 "unknown opcode for phase" is a protocol violation).
type Registry struct {
	handlers map[uint16]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[uint16]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given session
// states.
func (reg *Registry) Register(opcode uint16, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Registered reports whether opcode has a handler, for Connection's
// "every opcode declared as readable has a registered handler" invariant
// checks in tests.
func (reg *Registry) Registered(opcode uint16) bool {
	_, ok := reg.handlers[opcode]
	return ok
}

// Dispatch finds the handler for the payload's opcode, validates the
// session state, and calls the handler with panic recovery (spec.md §7 "no
// exception ever escapes a zone actor" — the same discipline applies to a
// Connection's own goroutine, since one misbehaving packet must not take
// down the process).
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("packet: frame too short for opcode: %d bytes", len(data))
	}
	r := NewReader(data)
	opcode := r.Opcode()

	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint16("opcode", opcode), zap.String("state", state.String()))
		return fmt.Errorf("packet: unknown opcode 0x%04X for state %s", opcode, state)
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("opcode not allowed in this state",
			zap.Uint16("opcode", opcode),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("packet: opcode 0x%04X not allowed in state %s", opcode, state)
	}

	return reg.safeCall(entry.fn, sess, r, opcode)
}

// safeCall executes a handler with panic recovery to prevent a single bad
// packet from crashing its Connection's goroutine.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, opcode uint16) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint16("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("packet: handler panic for opcode 0x%04X: %v", opcode, rec)
		}
	}()
	return fn(sess, r)
}
