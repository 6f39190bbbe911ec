package reducer

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finch/internal/delta"
)

func sampleStream() []delta.Delta {
	return []delta.Delta{
		delta.UserMessageID("u-1"),
		delta.QueryLoading{IsLoading: true, TaskNames: []string{}},
		delta.QueryLoading{IsLoading: true, TaskNames: []string{"Retrieving AAPL financials"}},
		delta.ToolStart("searchWeb", "Searching the web for: AAPL..."),
		delta.ToolStop("searchWeb"),
		delta.LoadingOff(),
		delta.DocumentID("doc-1"),
		delta.Title("AAPL"),
		delta.Kind("text"),
		delta.TextDelta("Apple "),
		delta.TextDelta("revenue grew."),
		delta.Finish{},
		delta.MessageAnnotation{MessageIDFromServer: "m-1"},
		delta.Done{},
	}
}

func TestApply_DuplicateBatchIsIdempotent(t *testing.T) {
	r := New()
	stream := sampleStream()

	require.NoError(t, r.Apply(stream))
	first := r.State()

	require.NoError(t, r.Apply(stream))
	assert.Equal(t, first, r.State())
	assert.Equal(t, len(stream)-1, r.LastIndex())
}

func TestApply_FoldsStream(t *testing.T) {
	r := New()
	require.NoError(t, r.Apply(sampleStream()))

	s := r.State()
	assert.Equal(t, "u-1", s.UserMessageID)
	assert.False(t, s.Loading.IsLoading)
	assert.Empty(t, s.Loading.TaskNames)
	assert.Equal(t, ToolState{IsLoading: false}, s.Tools["searchWeb"])
	require.NotNil(t, s.Draft)
	assert.Equal(t, "doc-1", s.Draft.ID)
	assert.Equal(t, "AAPL", s.Draft.Title)
	assert.Equal(t, "Apple revenue grew.", s.Draft.Content)
	assert.Equal(t, DraftIdle, s.Draft.Status)
	assert.Equal(t, []string{"m-1"}, s.AssistantMessageIDs)
	assert.True(t, s.Done)
}

func TestApply_LastIndexMonotonic(t *testing.T) {
	stream := sampleStream()
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		r := New()
		prev := r.LastIndex()
		for step := 0; step < 30; step++ {
			// deliveries may be stale, repeated or ahead
			n := rng.Intn(len(stream) + 1)
			require.NoError(t, r.Apply(stream[:n]))
			assert.GreaterOrEqual(t, r.LastIndex(), prev)
			prev = r.LastIndex()
		}
	}
}

func TestApply_IdenticalQueryLoadingNotifiesOnce(t *testing.T) {
	r := New()
	var changes []Change
	r.Subscribe(func(c Change) {
		if _, ok := c.Delta.(delta.QueryLoading); ok {
			changes = append(changes, c)
		}
	})

	ql := delta.QueryLoading{IsLoading: true, TaskNames: []string{"Retrieving AAPL financials"}}
	require.NoError(t, r.Push(ql))
	require.NoError(t, r.Push(ql))

	require.Len(t, changes, 1)
	assert.Equal(t, ql, changes[0].State.Loading)
	assert.Equal(t, 1, r.LastIndex())
}

func TestApply_LoadingOffMatchesInitialState(t *testing.T) {
	r := New()
	notified := 0
	r.Subscribe(func(Change) { notified++ })

	require.NoError(t, r.Push(delta.QueryLoading{IsLoading: false}))
	assert.Zero(t, notified, "nil and empty task lists compare equal")
}

func TestTextDelta_VisibilityWindow(t *testing.T) {
	r := New()
	require.NoError(t, r.Push(delta.Kind("text")))

	require.NoError(t, r.Push(delta.TextDelta(strings.Repeat("a", 400))))
	assert.False(t, r.State().Draft.IsVisible, "400 is not inside the window")

	require.NoError(t, r.Push(delta.TextDelta("b")))
	assert.False(t, r.State().Draft.IsVisible, "checked against content before append")

	require.NoError(t, r.Push(delta.TextDelta("c")))
	assert.True(t, r.State().Draft.IsVisible)
}

func TestTextDelta_JumpOverWindowStaysHidden(t *testing.T) {
	r := New()
	require.NoError(t, r.Push(delta.TextDelta(strings.Repeat("a", 10))))
	require.NoError(t, r.Push(delta.TextDelta(strings.Repeat("a", 500))))
	require.NoError(t, r.Push(delta.TextDelta("x")))
	assert.False(t, r.State().Draft.IsVisible)
}

func TestCodeDelta_ReplacesAndUsesOwnWindow(t *testing.T) {
	r := New()
	require.NoError(t, r.Push(delta.CodeDelta(strings.Repeat("x", 305))))
	d := r.State().Draft
	assert.Len(t, d.Content, 305)
	assert.False(t, d.IsVisible)

	require.NoError(t, r.Push(delta.CodeDelta("print(1)")))
	d = r.State().Draft
	assert.Equal(t, "print(1)", d.Content)
	assert.True(t, d.IsVisible)
}

func TestClearAndFinish(t *testing.T) {
	r := New()
	require.NoError(t, r.Push(delta.TextDelta("first artifact")))
	require.NoError(t, r.Push(delta.Clear{}))

	d := r.State().Draft
	assert.Empty(t, d.Content)
	assert.Equal(t, DraftStreaming, d.Status)

	require.NoError(t, r.Push(delta.Finish{}))
	assert.Equal(t, DraftIdle, r.State().Draft.Status)
}

func TestFirstDraftDeltaStartsStreaming(t *testing.T) {
	r := New()
	assert.Nil(t, r.State().Draft)

	require.NoError(t, r.Push(delta.Title("Q3")))
	d := r.State().Draft
	require.NotNil(t, d)
	assert.Equal(t, DraftStreaming, d.Status)
	assert.Equal(t, "Q3", d.Title)
}

// A push from inside a subscriber is folded after the delta being applied
// and before anything pushed later.
func TestReentrantPushIsDeferredNotDropped(t *testing.T) {
	r := New()
	var texts []string
	r.Subscribe(func(c Change) {
		if v, ok := c.Delta.(delta.TextDelta); ok {
			texts = append(texts, string(v))
			if v == "a" {
				require.NoError(t, r.Push(delta.TextDelta("c")))
			}
		}
	})

	require.NoError(t, r.Push(delta.TextDelta("a")))
	require.NoError(t, r.Push(delta.TextDelta("b")))

	assert.Equal(t, []string{"a", "c", "b"}, texts)
	assert.Equal(t, "acb", r.State().Draft.Content)
}

func TestAfterDoneIgnored(t *testing.T) {
	r := New()
	require.NoError(t, r.Push(delta.Error("Something went wrong. Please retry.")))
	require.NoError(t, r.Push(delta.Done{}))
	require.NoError(t, r.Push(delta.TextDelta("ghost")))

	s := r.State()
	assert.True(t, s.Done)
	assert.Equal(t, "Something went wrong. Please retry.", s.Error)
	assert.Nil(t, s.Draft)
	assert.Equal(t, 2, r.LastIndex())
}

func TestStateIsACopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Push(delta.QueryLoading{IsLoading: true, TaskNames: []string{"a"}}))

	s := r.State()
	s.Loading.TaskNames[0] = "mutated"
	s.Tools["x"] = ToolState{IsLoading: true}

	assert.Equal(t, []string{"a"}, r.State().Loading.TaskNames)
	assert.NotContains(t, r.State().Tools, "x")
}

func TestReset(t *testing.T) {
	r := New()
	calls := 0
	r.Subscribe(func(Change) { calls++ })
	require.NoError(t, r.Push(delta.Done{}))
	r.Reset()

	assert.Equal(t, -1, r.LastIndex())
	assert.False(t, r.State().Done)
	require.NoError(t, r.Push(delta.UserMessageID("u2")))
	assert.Equal(t, 2, calls, "subscribers survive reset")
}
