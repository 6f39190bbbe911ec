package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finch/internal/tools"
)

func TestSearchWeb(t *testing.T) {
	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"answer":"","results":[
			{"title":"NVDA Q3","url":"https://a.example/nvda","content":"Revenue rose","score":0.9},
			{"title":"Chips","url":"https://b.example/chips","content":"Demand","score":0.5}]}`)
	}))
	defer srv.Close()

	tool := NewSearchWebTool(TavilyConfig{APIKey: "tvly-key", Endpoint: srv.URL})
	res, err := tool.Execute(context.Background(), map[string]any{"query": "NVDA earnings", "maxResults": float64(50)})
	require.NoError(t, err)

	assert.Equal(t, "tvly-key", got.APIKey)
	assert.Equal(t, "basic", got.SearchDepth)
	assert.True(t, got.IncludeAnswer)
	assert.Equal(t, 10, got.MaxResults, "max results is capped")

	var out SearchOutput
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	assert.Equal(t, "NVDA earnings", out.Query)
	assert.Equal(t, "No direct answer available", out.Answer)
	require.Len(t, out.Sources, 2)
	assert.Contains(t, out.Note, "1. NVDA Q3 (https://a.example/nvda); 2. Chips (https://b.example/chips)")
	assert.Equal(t, "Searching the web for: NVDA earnings...", tool.LoadingMessage(map[string]any{"query": "NVDA earnings"}))
}

func TestSearchWebDefaultsAndErrors(t *testing.T) {
	var got tavilyRequest
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
		fmt.Fprint(w, `{"answer":"ok","results":[]}`)
	}))
	defer srv.Close()

	tool := NewSearchWebTool(TavilyConfig{APIKey: "k", Endpoint: srv.URL})
	_, err := tool.Execute(context.Background(), map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Equal(t, 5, got.MaxResults)

	_, err = tool.Execute(context.Background(), map[string]any{"query": "  "})
	assert.ErrorIs(t, err, tools.ErrInvalidArgs)

	status = http.StatusUnauthorized
	_, err = tool.Execute(context.Background(), map[string]any{"query": "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestFinancialTools(t *testing.T) {
	var gotPath, gotKey string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-KEY")
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"income_statements":[{"revenue":1}]}`)
	}))
	defer srv.Close()

	ft := NewFinancialTools(FinancialConfig{APIKey: "fd-key", Endpoint: srv.URL + "/"})
	require.Len(t, ft, 4)

	byName := map[string]*FinancialTool{}
	for _, tool := range ft {
		byName[tool.Name()] = tool
	}

	res, err := byName[GetIncomeStatementsName].Execute(context.Background(), map[string]any{"ticker": "aapl", "limit": float64(2)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"income_statements":[{"revenue":1}]}`, res.Content)
	assert.Equal(t, "/financials/income-statements/", gotPath)
	assert.Equal(t, "fd-key", gotKey)
	assert.Equal(t, []string{"AAPL"}, gotQuery["ticker"])
	assert.Equal(t, []string{"ttm"}, gotQuery["period"])
	assert.Equal(t, []string{"2"}, gotQuery["limit"])

	_, err = byName[GetStockPricesName].Execute(context.Background(), map[string]any{
		"ticker": "MSFT", "start_date": "2024-01-01", "end_date": "2024-02-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "/prices/", gotPath)
	assert.Equal(t, []string{"day"}, gotQuery["interval"])

	_, err = byName[GetStockPricesName].Execute(context.Background(), map[string]any{
		"ticker": "MSFT", "start_date": "2024-03-01", "end_date": "2024-02-01",
	})
	assert.ErrorIs(t, err, tools.ErrInvalidArgs)

	assert.Equal(t, "Fetching balance sheets for TSLA...", byName[GetBalanceSheetsName].LoadingMessage(map[string]any{"ticker": "tsla"}))
}

func TestFinancialSchemasValidate(t *testing.T) {
	for _, tool := range NewFinancialTools(FinancialConfig{APIKey: "k"}) {
		err := tools.ValidateArgs(tool.Name(), tool.Parameters(), map[string]any{})
		assert.ErrorIs(t, err, tools.ErrInvalidArgs, "%s should require a ticker", tool.Name())
	}
}

func TestRegisterHonoursKeys(t *testing.T) {
	tests := []struct {
		name string
		keys Keys
		want []string
	}{
		{"none", Keys{Tavily: "", FinancialDatasets: "your-financial-datasets-api-key"}, nil},
		{"search only", Keys{Tavily: "tvly"}, []string{SearchWebName}},
		{"all", Keys{Tavily: "tvly", FinancialDatasets: "fd"}, ToolNames()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tools.NewRegistry()
			names, err := Register(r, Options{Keys: tt.keys})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
			assert.Equal(t, len(tt.want), r.Len())
		})
	}
}
