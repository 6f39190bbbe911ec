// Package reducer folds a turn's ordered delta stream into client-side state:
// loading indicators, per-tool progress, the streamed document draft and the
// message ids assigned by the server.
//
// A Reducer is single-threaded. It is not safe for concurrent use; callers
// feed it from one goroutine (the transport reader). Subscribers are called
// synchronously and may feed the reducer again, in which case the new input is
// deferred until the current batch has been folded.
package reducer

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"finch/internal/delta"
)

// Visibility windows: the draft panel opens the first time the content
// length (before the delta is applied) falls strictly inside the window
// while the draft is streaming.
const (
	textVisibleMin = 400
	textVisibleMax = 450
	codeVisibleMin = 300
	codeVisibleMax = 310
)

// ErrUnhandledDelta is reported for delta types the reducer has no rule for.
var ErrUnhandledDelta = errors.New("unhandled delta")

// DraftStatus is the lifecycle of a document draft.
type DraftStatus string

const (
	DraftIdle      DraftStatus = "idle"
	DraftStreaming DraftStatus = "streaming"
)

// Draft is the document being streamed into the side panel.
type Draft struct {
	ID        string
	Title     string
	Kind      string
	Content   string
	Status    DraftStatus
	IsVisible bool
}

// ToolState is the progress of one tool.
type ToolState struct {
	IsLoading bool
	Message   string
}

// State is everything the UI renders from the stream.
type State struct {
	UserMessageID       string
	Loading             delta.QueryLoading
	Tools               map[string]ToolState
	Draft               *Draft
	AssistantMessageIDs []string
	Error               string
	Done                bool
}

func (s State) clone() State {
	out := s
	out.Loading.TaskNames = append([]string{}, s.Loading.TaskNames...)
	out.Tools = make(map[string]ToolState, len(s.Tools))
	for k, v := range s.Tools {
		out.Tools[k] = v
	}
	if s.Draft != nil {
		d := *s.Draft
		out.Draft = &d
	}
	out.AssistantMessageIDs = append([]string(nil), s.AssistantMessageIDs...)
	return out
}

// Change is delivered to subscribers after a delta altered the state.
type Change struct {
	Index int
	Delta delta.Delta
	State State
}

// Reducer is the per-session state machine.
type Reducer struct {
	lastIndex int
	busy      bool
	pending   []delta.Delta
	hasQueued bool
	log       []delta.Delta
	state     State
	subs      []func(Change)
}

// New returns an empty reducer.
func New() *Reducer {
	return &Reducer{
		lastIndex: -1,
		state:     State{Loading: delta.LoadingOff(), Tools: map[string]ToolState{}},
	}
}

// Subscribe registers fn for every state change.
func (r *Reducer) Subscribe(fn func(Change)) {
	r.subs = append(r.subs, fn)
}

// LastIndex is the index of the last processed delta, -1 before any.
func (r *Reducer) LastIndex() int { return r.lastIndex }

// State returns a copy of the current state.
func (r *Reducer) State() State { return r.state.clone() }

// Push appends d to the reducer's own log and folds it.
func (r *Reducer) Push(d delta.Delta) error {
	r.log = append(r.log, d)
	return r.Apply(r.log)
}

// Apply folds all[LastIndex()+1:]. all is the cumulative stream received so
// far; deltas at or below the last processed index are never applied again,
// so redelivering a batch is a no-op. A call made while a batch is being
// folded is queued and processed right after it.
func (r *Reducer) Apply(all []delta.Delta) error {
	if r.busy {
		r.pending = all
		r.hasQueued = true
		return nil
	}

	r.busy = true
	defer func() { r.busy = false }()

	var errs []error
	for {
		if len(all)-1 > r.lastIndex {
			fresh := all[r.lastIndex+1:]
			start := r.lastIndex + 1
			r.lastIndex = len(all) - 1
			for i, d := range fresh {
				if err := r.apply(start+i, d); err != nil {
					errs = append(errs, err)
				}
			}
		}
		if !r.hasQueued {
			break
		}
		all, r.pending, r.hasQueued = r.pending, nil, false
	}
	return errors.Join(errs...)
}

// Reset discards all state, for a new stream.
func (r *Reducer) Reset() {
	subs := r.subs
	*r = *New()
	r.subs = subs
}

func (r *Reducer) apply(idx int, d delta.Delta) error {
	if r.state.Done {
		return nil
	}

	changed := true
	switch v := d.(type) {
	case delta.UserMessageID:
		r.state.UserMessageID = string(v)

	case delta.ToolLoading:
		msg := ""
		if v.Message != nil {
			msg = *v.Message
		}
		r.state.Tools[v.Tool] = ToolState{IsLoading: v.IsLoading, Message: msg}

	case delta.QueryLoading:
		if cmp.Equal(r.state.Loading, v, cmpopts.EquateEmpty()) {
			changed = false
			break
		}
		r.state.Loading = delta.QueryLoading{
			IsLoading: v.IsLoading,
			TaskNames: append([]string{}, v.TaskNames...),
		}

	case delta.MessageAnnotation:
		r.state.AssistantMessageIDs = append(r.state.AssistantMessageIDs, v.MessageIDFromServer)

	case delta.Error:
		r.state.Error = string(v)

	case delta.Done:
		r.state.Done = true

	case delta.DocumentID, delta.Title, delta.Kind,
		delta.TextDelta, delta.CodeDelta, delta.Clear, delta.Finish:
		r.applyDraft(d)

	default:
		return fmt.Errorf("%w: %T at %d", ErrUnhandledDelta, d, idx)
	}

	if changed {
		r.notify(idx, d)
	}
	return nil
}

func (r *Reducer) applyDraft(d delta.Delta) {
	if r.state.Draft == nil {
		r.state.Draft = &Draft{Kind: "text", Status: DraftStreaming}
	}
	draft := r.state.Draft

	switch v := d.(type) {
	case delta.DocumentID:
		draft.ID = string(v)
		draft.Status = DraftStreaming
	case delta.Title:
		draft.Title = string(v)
		draft.Status = DraftStreaming
	case delta.Kind:
		draft.Kind = string(v)
		draft.Status = DraftStreaming
	case delta.TextDelta:
		if crosses(draft, textVisibleMin, textVisibleMax) {
			draft.IsVisible = true
		}
		draft.Content += string(v)
		draft.Status = DraftStreaming
	case delta.CodeDelta:
		if crosses(draft, codeVisibleMin, codeVisibleMax) {
			draft.IsVisible = true
		}
		draft.Content = string(v)
		draft.Status = DraftStreaming
	case delta.Clear:
		draft.Content = ""
		draft.Status = DraftStreaming
	case delta.Finish:
		draft.Status = DraftIdle
	}
}

func crosses(d *Draft, lo, hi int) bool {
	if d.Status != DraftStreaming {
		return false
	}
	n := utf8.RuneCountInString(d.Content)
	return n > lo && n < hi
}

func (r *Reducer) notify(idx int, d delta.Delta) {
	if len(r.subs) == 0 {
		return
	}
	c := Change{Index: idx, Delta: d, State: r.state.clone()}
	for _, fn := range r.subs {
		fn(c)
	}
}
