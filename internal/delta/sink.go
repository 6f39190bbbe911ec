package delta

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// SSESink writes deltas as server-sent events, one "data:" frame each,
// flushing after every frame.
type SSESink struct {
	w       http.ResponseWriter
	f       http.Flusher
	started bool
}

// NewSSESink returns a sink for w. The event-stream headers are set on the
// first Send, so w can still carry a JSON error until then.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &SSESink{w: w, f: f}, nil
}

// Send implements Sink.
func (s *SSESink) Send(d Delta) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.started = true
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// ReadSSE decodes "data:" frames from r and calls fn for each delta until
// done is received, r is exhausted, or ctx is cancelled.
func ReadSSE(ctx context.Context, r io.Reader, fn func(Delta) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimSpace(line[len("data:"):])
		if len(payload) == 0 {
			continue
		}
		d, err := Unmarshal(payload)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		if _, ok := d.(Done); ok {
			return nil
		}
	}
	return sc.Err()
}

// Recorder is an in-memory sink that keeps every delta it receives.
type Recorder struct {
	mu     sync.Mutex
	deltas []Delta
	notify chan struct{}
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Send implements Sink.
func (r *Recorder) Send(d Delta) error {
	r.mu.Lock()
	r.deltas = append(r.deltas, d)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Deltas returns a snapshot of everything recorded so far.
func (r *Recorder) Deltas() []Delta {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delta, len(r.deltas))
	copy(out, r.deltas)
	return out
}

// Types returns the wire types recorded so far, in order.
func (r *Recorder) Types() []Type {
	ds := r.Deltas()
	out := make([]Type, len(ds))
	for i, d := range ds {
		out[i] = d.Type()
	}
	return out
}

// Updated is signalled after each Send. Signals coalesce.
func (r *Recorder) Updated() <-chan struct{} {
	return r.notify
}
