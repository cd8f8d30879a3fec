package streaming

import (
	"context"
	"errors"
	"sync"
)

// Stream is an ordered, pull-based sequence of events.
//
// Next advances to the next event and reports whether one is available.
// Current returns the event Next advanced to. Once Next returns false, Err
// reports why: nil when the producer closed the stream normally, non-nil
// when the producer itself failed.
type Stream interface {
	Next() bool
	Current() Event
	Err() error
}

var (
	// ErrStreamClosed is returned by Pipe.Send after the pipe was closed.
	ErrStreamClosed = errors.New("stream closed")

	// ErrConsumerStopped is returned by Pipe.Send once the consumer called
	// Stop and will read no more events.
	ErrConsumerStopped = errors.New("stream consumer stopped")
)

// Stopper is implemented by streams whose producer should learn that the
// consumer stopped reading. Consume calls Stop on return.
type Stopper interface {
	Stop()
}

// SliceStream replays a fixed list of events, optionally failing at the end.
type SliceStream struct {
	events []Event
	err    error
	pos    int
	cur    Event
}

// NewSliceStream returns a stream over events that closes normally.
func NewSliceStream(events ...Event) *SliceStream {
	return &SliceStream{events: events}
}

// NewFailingSliceStream returns a stream over events whose Err reports err
// once the events are exhausted.
func NewFailingSliceStream(err error, events ...Event) *SliceStream {
	return &SliceStream{events: events, err: err}
}

// Next implements Stream
func (s *SliceStream) Next() bool {
	if s.pos >= len(s.events) {
		return false
	}
	s.cur = s.events[s.pos]
	s.pos++
	return true
}

// Current implements Stream
func (s *SliceStream) Current() Event {
	return s.cur
}

// Err implements Stream
func (s *SliceStream) Err() error {
	if s.pos < len(s.events) {
		return nil
	}
	return s.err
}

// Pipe is a channel-backed Stream. A producer goroutine sends events and
// closes the pipe; the consumer reads it through the Stream interface and
// calls Stop when it is done reading.
type Pipe struct {
	ch      chan Event
	closing chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	stopOnce  sync.Once

	mu     sync.RWMutex
	err    error
	closed bool

	cur Event
}

// NewPipe creates a pipe with the given channel buffer.
func NewPipe(buffer int) *Pipe {
	if buffer < 0 {
		buffer = 0
	}
	return &Pipe{
		ch:      make(chan Event, buffer),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Send delivers an event, blocking until the consumer has room, the pipe
// is closed, the consumer stopped, or ctx is done.
func (p *Pipe) Send(ctx context.Context, ev Event) error {
	// The read lock keeps close(p.ch) from running while the send is
	// pending; CloseWithError signals closing first to release it.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStreamClosed
	}
	select {
	case <-p.stopped:
		return ErrConsumerStopped
	default:
	}

	select {
	case p.ch <- ev:
		return nil
	case <-p.closing:
		return ErrStreamClosed
	case <-p.stopped:
		return ErrConsumerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream normally.
func (p *Pipe) Close() {
	p.CloseWithError(nil)
}

// CloseWithError ends the stream; a non-nil err surfaces from Err as a
// stream-level failure. It is safe to call from any goroutine, also while
// a Send is blocked.
func (p *Pipe) CloseWithError(err error) {
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		p.closed = true
		p.err = err
		p.mu.Unlock()
		close(p.ch)
	})
}

// Stop tells the producer that no more events will be read. Pending and
// later sends return ErrConsumerStopped.
func (p *Pipe) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
}

// Stopped is closed once the consumer called Stop.
func (p *Pipe) Stopped() <-chan struct{} {
	return p.stopped
}

// Next implements Stream
func (p *Pipe) Next() bool {
	ev, ok := <-p.ch
	if !ok {
		return false
	}
	p.cur = ev
	return true
}

// Current implements Stream
func (p *Pipe) Current() Event {
	return p.cur
}

// Err implements Stream
func (p *Pipe) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}
