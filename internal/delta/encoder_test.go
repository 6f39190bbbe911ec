package delta

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_PreservesEmitOrder(t *testing.T) {
	rec := NewRecorder()
	enc := NewEncoder(rec)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, enc.Text(fmt.Sprintf("%d:%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	got := rec.Deltas()
	require.Len(t, got, writers*perWriter)

	// each writer's own sequence stays in order
	last := make(map[string]int)
	for _, d := range got {
		parts := strings.SplitN(string(d.(TextDelta)), ":", 2)
		var n int
		fmt.Sscanf(parts[1], "%d", &n)
		if prev, ok := last[parts[0]]; ok {
			assert.Greater(t, n, prev)
		}
		last[parts[0]] = n
	}
	assert.Equal(t, writers*perWriter, enc.Sent())
}

func TestEncoder_ClosedAfterDone(t *testing.T) {
	rec := NewRecorder()
	enc := NewEncoder(rec)

	require.NoError(t, enc.Finish())
	require.NoError(t, enc.Done())
	assert.False(t, enc.Writable())

	err := enc.Text("late")
	assert.ErrorIs(t, err, ErrEncoderClosed)
	assert.Equal(t, []Type{TypeFinish, TypeDone}, rec.Types())
}

func TestEncoder_WriteFailureIsSticky(t *testing.T) {
	calls := 0
	sink := SinkFunc(func(d Delta) error {
		calls++
		if calls == 2 {
			return errors.New("broken pipe")
		}
		return nil
	})
	enc := NewEncoder(sink)

	require.NoError(t, enc.Text("a"))
	err := enc.Text("b")
	require.ErrorIs(t, err, ErrStreamWrite)
	assert.False(t, enc.Writable())

	assert.ErrorIs(t, enc.Done(), ErrStreamWrite)
	assert.Equal(t, 2, calls)
}

func TestEncoder_ObserverFailureIgnored(t *testing.T) {
	rec := NewRecorder()
	enc := NewEncoder(rec, SinkFunc(func(Delta) error { return errors.New("gone") }))

	require.NoError(t, enc.Text("x"))
	require.NoError(t, enc.Fail("bad"))
	assert.Equal(t, []Type{TypeTextDelta, TypeError, TypeDone}, rec.Types())
}

func TestSSESink_RoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	sink, err := NewSSESink(w)
	require.NoError(t, err)
	assert.Empty(t, w.Header().Get("Content-Type"), "headers wait for the first frame")

	enc := NewEncoder(sink)
	require.NoError(t, enc.Emit(UserMessageID("u-1")))
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.NoError(t, enc.QueryLoading(true, []string{"Retrieving AAPL financials"}))
	require.NoError(t, enc.Text("hello"))
	require.NoError(t, enc.Finish())
	require.NoError(t, enc.Done())

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, `data: {"type":"user-message-id","content":"u-1"}`+"\n\n"))

	var got []Delta
	err = ReadSSE(context.Background(), strings.NewReader(body+"data: {\"type\":\"text-delta\",\"content\":\"after\"}\n\n"), func(d Delta) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 5, "reading stops at done")
	assert.Equal(t, QueryLoading{IsLoading: true, TaskNames: []string{"Retrieving AAPL financials"}}, got[1])
	assert.Equal(t, Done{}, got[4])
}
