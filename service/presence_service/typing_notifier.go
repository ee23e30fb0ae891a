package presence_service

import (
	"sync"
	"time"
)

const (
	DefaultTypingIdle = 700 * time.Millisecond
	MinTypingIdle     = 400 * time.Millisecond
	MaxTypingIdle     = 1000 * time.Millisecond
)

// TypingNotifier turns a stream of local keystrokes into one typing=true
// signal at the start of a burst and one typing=false signal after the input
// has been idle.
type TypingNotifier struct {
	send func(isTyping bool)
	idle time.Duration

	mu      sync.Mutex
	active  bool
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewTypingNotifier creates a notifier that calls send for every outbound
// typing signal. idle is clamped to the 400ms..1000ms window.
func NewTypingNotifier(send func(isTyping bool), idle time.Duration) *TypingNotifier {
	switch {
	case idle <= 0:
		idle = DefaultTypingIdle
	case idle < MinTypingIdle:
		idle = MinTypingIdle
	case idle > MaxTypingIdle:
		idle = MaxTypingIdle
	}
	return &TypingNotifier{send: send, idle: idle}
}

// Touch records one input change.
func (n *TypingNotifier) Touch() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	start := !n.active
	n.active = true
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.timer = time.AfterFunc(n.idle, func() { n.idleTimeout(gen) })
	n.mu.Unlock()

	if start {
		n.send(true)
	}
}

func (n *TypingNotifier) idleTimeout(gen uint64) {
	n.mu.Lock()
	if n.gen != gen || !n.active || n.stopped {
		n.mu.Unlock()
		return
	}
	n.active = false
	n.timer = nil
	n.mu.Unlock()

	n.send(false)
}

// Stop cancels the idle timer without sending anything and reports whether a
// typing=true signal was outstanding. The final typing=false belongs to
// whoever closes the transport. Touch is a no-op afterwards.
func (n *TypingNotifier) Stop() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return false
	}
	wasTyping := n.active
	n.stopped = true
	n.active = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
	return wasTyping
}
