package delta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_WireShapes(t *testing.T) {
	msg := "Searching the web for: AAPL..."
	tests := []struct {
		name string
		in   Delta
		want string
	}{
		{"user message id", UserMessageID("u-1"), `{"type":"user-message-id","content":"u-1"}`},
		{"query loading nil tasks", QueryLoading{IsLoading: true}, `{"type":"query-loading","content":{"isLoading":true,"taskNames":[]}}`},
		{"tool start", ToolLoading{Tool: "searchWeb", IsLoading: true, Message: &msg}, `{"type":"tool-loading","content":{"tool":"searchWeb","isLoading":true,"message":"Searching the web for: AAPL..."}}`},
		{"tool stop null message", ToolStop("searchWeb"), `{"type":"tool-loading","content":{"tool":"searchWeb","isLoading":false,"message":null}}`},
		{"text", TextDelta("hi"), `{"type":"text-delta","content":"hi"}`},
		{"clear", Clear{}, `{"type":"clear"}`},
		{"done", Done{}, `{"type":"done"}`},
		{"annotation", MessageAnnotation{MessageIDFromServer: "m-1"}, `{"type":"message-annotation","content":{"messageIdFromServer":"m-1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestUnmarshal_DecodesEveryType(t *testing.T) {
	msg := "fetching"
	all := []Delta{
		UserMessageID("u"),
		QueryLoading{IsLoading: true, TaskNames: []string{"Retrieving AAPL financials"}},
		ToolLoading{Tool: "getIncomeStatements", IsLoading: true, Message: &msg},
		DocumentID("doc"),
		Title("Q3"),
		Kind("text"),
		TextDelta("abc"),
		CodeDelta("print(1)"),
		Clear{},
		Finish{},
		Error("boom"),
		Done{},
		MessageAnnotation{MessageIDFromServer: "m"},
	}
	for _, d := range all {
		data, err := Marshal(d)
		require.NoError(t, err)

		got, err := Unmarshal(data)
		require.NoError(t, err, string(data))
		assert.Equal(t, d, got)
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"sparkle","content":"x"}`))
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = Unmarshal([]byte(`{"type":"query-loading"}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestUnmarshal_FinishWithEmptyContent(t *testing.T) {
	d, err := Unmarshal([]byte(`{"type":"finish","content":""}`))
	require.NoError(t, err)
	assert.Equal(t, Finish{}, d)
}
