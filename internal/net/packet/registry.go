package packet

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateQueued
	StateAdmitted
	StatePlaying
	StateLoggingOut
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateQueued:
		return "Queued"
	case StateAdmitted:
		return "Admitted"
	case StatePlaying:
		return "Playing"
	case StateLoggingOut:
		return "LoggingOut"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for packet handlers. The reader is
// positioned just after the opcode byte.
type HandlerFunc[S any] func(sess S, r *Reader)

type handlerEntry[S any] struct {
	fn            HandlerFunc[S]
	allowedStates map[SessionState]bool
	expiry        time.Duration
	whileDead     bool
}

// HandlerOption tunes a registration.
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	expiry    time.Duration
	whileDead bool
}

// WithExpiry marks the handler's dispatcher task as dropped when it has not
// started within d of the packet being received.
func WithExpiry(d time.Duration) HandlerOption {
	return func(o *handlerOptions) { o.expiry = d }
}

// AllowWhileDead accepts the packet for a dead or removed player.
func AllowWhileDead() HandlerOption {
	return func(o *handlerOptions) { o.whileDead = true }
}

// Registry maps opcodes to handlers with state-based access control.
type Registry[S any] struct {
	handlers map[byte]*handlerEntry[S]
	log      *zap.Logger
}

func NewRegistry[S any](log *zap.Logger) *Registry[S] {
	return &Registry[S]{
		handlers: make(map[byte]*handlerEntry[S]),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given session states.
func (reg *Registry[S]) Register(opcode byte, states []SessionState, fn HandlerFunc[S], opts ...HandlerOption) {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry[S]{
		fn:            fn,
		allowedStates: allowed,
		expiry:        o.expiry,
		whileDead:     o.whileDead,
	}
}

// Expiry returns the task expiry registered for opcode, or 0.
func (reg *Registry[S]) Expiry(opcode byte) time.Duration {
	if e, ok := reg.handlers[opcode]; ok {
		return e.expiry
	}
	return 0
}

// AllowedWhileDead reports whether opcode is accepted for a dead or removed player.
func (reg *Registry[S]) AllowedWhileDead(opcode byte) bool {
	e, ok := reg.handlers[opcode]
	return ok && e.whileDead
}

// Dispatch reads the opcode from r, validates the session state, and calls the
// handler. Unknown opcodes are ignored.
func (reg *Registry[S]) Dispatch(sess S, state SessionState, r *Reader) error {
	opcode := r.ReadC()
	if r.Overrun() {
		return fmt.Errorf("empty packet")
	}

	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint8("opcode", opcode), zap.String("state", state.String()))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("opcode not allowed in state",
			zap.Uint8("opcode", opcode),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("opcode 0x%02X not allowed in state %s", opcode, state)
	}

	return reg.safeCall(entry.fn, sess, r, opcode)
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot take down the dispatcher.
func (reg *Registry[S]) safeCall(fn HandlerFunc[S], sess S, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint8("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode 0x%02X: %v", opcode, rec)
		}
	}()
	fn(sess, r)
	return nil
}
