package delta

import (
	"errors"
	"fmt"
	"sync"

	"finch/pkg/logger"
)

var (
	// ErrEncoderClosed is returned for writes after Done.
	ErrEncoderClosed = errors.New("delta encoder closed")
	// ErrStreamWrite wraps transport failures. Once a write fails the
	// encoder stops accepting deltas.
	ErrStreamWrite = errors.New("stream write failed")
)

// Sink is a transport for deltas.
type Sink interface {
	Send(d Delta) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Delta) error

// Send calls f(d).
func (f SinkFunc) Send(d Delta) error { return f(d) }

// Encoder is the single writer of a turn's delta stream. Send calls are
// serialized under one mutex, so deltas reach the sink in exactly the order
// Emit was called, regardless of how many goroutines emit.
//
// Observers receive a copy of every delta after the primary sink accepted it.
// Their failures are logged and never affect the turn.
type Encoder struct {
	mu        sync.Mutex
	sink      Sink
	observers []Sink
	sent      int
	closed    bool
	err       error
}

// NewEncoder creates an encoder writing to sink.
func NewEncoder(sink Sink, observers ...Sink) *Encoder {
	return &Encoder{sink: sink, observers: observers}
}

// Observe adds an observer sink.
func (e *Encoder) Observe(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, s)
}

// Emit writes d. After Done is written the encoder is closed.
func (e *Encoder) Emit(d Delta) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEncoderClosed
	}
	if e.err != nil {
		return e.err
	}

	if err := e.sink.Send(d); err != nil {
		e.err = fmt.Errorf("%w: %s: %v", ErrStreamWrite, d.Type(), err)
		return e.err
	}
	e.sent++

	for _, o := range e.observers {
		if err := o.Send(d); err != nil {
			logger.Debug().Err(err).Str("type", string(d.Type())).Msg("delta observer rejected delta")
		}
	}

	if _, ok := d.(Done); ok {
		e.closed = true
	}
	return nil
}

// Writable reports whether another delta may still reach the sink.
func (e *Encoder) Writable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && e.err == nil
}

// Err returns the transport error that broke the stream, if any.
func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Sent returns the number of deltas accepted by the sink.
func (e *Encoder) Sent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sent
}

// Text emits a text-delta.
func (e *Encoder) Text(s string) error { return e.Emit(TextDelta(s)) }

// QueryLoading emits a query-loading delta.
func (e *Encoder) QueryLoading(isLoading bool, tasks []string) error {
	if tasks == nil {
		tasks = []string{}
	}
	return e.Emit(QueryLoading{IsLoading: isLoading, TaskNames: tasks})
}

// Finish emits finish.
func (e *Encoder) Finish() error { return e.Emit(Finish{}) }

// Fail emits error followed by done.
func (e *Encoder) Fail(msg string) error {
	if err := e.Emit(Error(msg)); err != nil {
		return err
	}
	return e.Emit(Done{})
}

// Done emits done.
func (e *Encoder) Done() error { return e.Emit(Done{}) }
