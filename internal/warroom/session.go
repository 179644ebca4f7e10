// Package warroom manages live dashboard sessions: the room registry,
// the dispatcher that bridges the fan-out channel to connected clients,
// and the WebSocket endpoint they connect through.
package warroom

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultSessionBuffer bounds the per-session outbound queue.
const DefaultSessionBuffer = 64

// Session is one live, connected subscriber. It owns a bounded outbound
// queue drained by the connection's write loop; the dispatcher only ever
// interacts with it through TrySend and Done, so a session vanishing
// mid-dispatch is always safe.
type Session struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewSession creates a session with the given outbound queue capacity.
func NewSession(buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSessionBuffer
	}
	return &Session{
		id:   uuid.NewString(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the opaque connection identifier.
func (s *Session) ID() string {
	return s.id
}

// TrySend queues a frame for delivery without ever blocking the caller.
// When the queue is full the oldest pending frame is discarded to make
// room: a live dashboard wants fresh state over a complete backlog.
// Returns false if the session is closed or the frame was not queued.
func (s *Session) TrySend(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
	}

	// Queue full: drop the oldest frame, then retry once.
	select {
	case <-s.send:
		recordSessionDrop()
	default:
	}

	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	default:
		recordSessionDrop()
		return false
	}
}

// Outbound exposes the queue to the connection's write loop.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Close marks the session dead. Idempotent; the send channel is never
// closed so concurrent TrySend calls cannot panic.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed once the session is disconnected. New dispatch attempts
// stop as soon as this is observed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
