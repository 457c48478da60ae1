package presence

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke the emitter
// waits before signaling that composition stopped.
const DefaultTypingIdle = 2 * time.Second

// EmitFunc transmits one outbound typing signal: composing=true for
// typing-start, false for typing-stop. Emits are best-effort; failures
// are the transmitter's problem.
type EmitFunc func(composing bool)

// TypingEmitter turns local input changes into debounced typing signals.
//
// State machine: Idle -> Composing on the first keystroke with non-empty
// text (emits start, arms the idle timer); subsequent keystrokes re-arm
// the timer without re-emitting start; Composing -> Idle on timer expiry,
// explicit send, or cleared text (emits stop, timer disarmed). Stop moves
// to Idle without a trailing signal; the connection is going away anyway.
//
// One start per burst: repeated keystrokes while composing are absorbed
// by the timer re-arm, they never re-send start.
type TypingEmitter struct {
	emit EmitFunc
	idle time.Duration

	mu        sync.Mutex
	composing bool
	timer     *time.Timer
	stopped   bool
}

// EmitterOption configures a TypingEmitter.
type EmitterOption func(*TypingEmitter)

// WithIdleTimeout overrides the inactivity window. Values <= 0 keep the
// default.
func WithIdleTimeout(d time.Duration) EmitterOption {
	return func(e *TypingEmitter) {
		if d > 0 {
			e.idle = d
		}
	}
}

func NewTypingEmitter(emit EmitFunc, opts ...EmitterOption) *TypingEmitter {
	e := &TypingEmitter{
		emit: emit,
		idle: DefaultTypingIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InputChanged is called on every local input change. hasText reports
// whether the input currently holds non-whitespace content.
func (e *TypingEmitter) InputChanged(hasText bool) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	if !hasText {
		wasComposing := e.composing
		e.composing = false
		e.disarmLocked()
		e.mu.Unlock()
		if wasComposing {
			e.emit(false)
		}
		return
	}

	first := !e.composing
	e.composing = true
	e.disarmLocked()
	e.timer = time.AfterFunc(e.idle, e.expire)
	e.mu.Unlock()

	if first {
		e.emit(true)
	}
}

// MessageSent cancels the pending timer and signals stop immediately.
// Called right before the composed message goes out.
func (e *TypingEmitter) MessageSent() {
	e.InputChanged(false)
}

// Stop moves the emitter to its terminal state: timer cancelled, no
// trailing stop signal. Called on channel close; a dangling timer firing
// after teardown would otherwise write to a dead session.
func (e *TypingEmitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.composing = false
	e.disarmLocked()
}

func (e *TypingEmitter) expire() {
	e.mu.Lock()
	if e.stopped || !e.composing {
		e.mu.Unlock()
		return
	}
	e.composing = false
	e.timer = nil
	e.mu.Unlock()
	e.emit(false)
}

func (e *TypingEmitter) disarmLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
