package events

import (
	"sync"
	"sync/atomic"
)

// Publisher is the producer side of a Stream.
type Publisher interface {
	Publish(e Event)
}

// Stream carries typed events from producers to a single consumer over a buffered channel.
// Publish never blocks: when the buffer is full the event is counted as dropped.
type Stream struct {
	ch      chan Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewStream creates a stream with the given buffer size.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 256
	}
	return &Stream{ch: make(chan Event, buffer)}
}

// Publish delivers e if there is room in the buffer.
func (s *Stream) Publish(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// C returns the receive side. It is closed by Close.
func (s *Stream) C() <-chan Event {
	return s.ch
}

// Dropped returns how many events were lost to a full buffer or a closed stream.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops delivery. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
