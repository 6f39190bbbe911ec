package builtin

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"finch/internal/tools"
)

// SearchWebName is the registered name of the web search tool.
const SearchWebName = "searchWeb"

// TavilyConfig configures the searchWeb tool.
type TavilyConfig struct {
	APIKey string
	// Endpoint is the full search URL.
	Endpoint          string
	DefaultMaxResults int
	MaxResultsCap     int
	HTTPClient        *http.Client
}

// SearchArgs defines the parameters for searchWeb.
type SearchArgs struct {
	Query      string `json:"query" jsonschema:"description=The search query to look up on the web. Be specific and include relevant keywords for better results.,required"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"description=The maximum number of search results to return (default: 5 max: 10)"`
}

// SearchWebTool queries Tavily and returns an answer with citable sources.
type SearchWebTool struct {
	tools.BaseTool
	cfg    TavilyConfig
	client *apiClient
}

// NewSearchWebTool creates the searchWeb tool.
func NewSearchWebTool(cfg TavilyConfig) *SearchWebTool {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.tavily.com/search"
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 5
	}
	if cfg.MaxResultsCap <= 0 {
		cfg.MaxResultsCap = 10
	}
	return &SearchWebTool{
		BaseTool: tools.BaseTool{
			ToolName: SearchWebName,
			ToolDescription: "Search the web for real-time information, news, articles, or any current events. " +
				"Use this tool when you need up-to-date information that is not in your training data, or when users ask about " +
				"recent events, financial news, company information or market trends. " +
				"IMPORTANT: When using information from search results, always cite the source URLs in your response.",
			ToolParameters: tools.BuildSchema(SearchArgs{}),
		},
		cfg:    cfg,
		client: newAPIClient(cfg.Endpoint, cfg.HTTPClient, nil),
	}
}

// LoadingMessage implements tools.LoadingMessager.
func (t *SearchWebTool) LoadingMessage(args map[string]any) string {
	q, _ := args["query"].(string)
	return fmt.Sprintf("Searching the web for: %s...", q)
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeImages     bool   `json:"include_images"`
	IncludeRawContent bool   `json:"include_raw_content"`
	MaxResults        int    `json:"max_results"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// SearchResult is one hit passed to the model.
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Source is a citable reference.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SearchOutput is the JSON returned to the model.
type SearchOutput struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
	Sources []Source       `json:"sources"`
	Note    string         `json:"note"`
}

// Execute runs the search.
func (t *SearchWebTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return tools.ToolResult{}, tools.NewInvalidArgsError(t.Name(), "query is required", nil)
	}
	limit := t.cfg.DefaultMaxResults
	if v, ok := args["maxResults"].(float64); ok && v > 0 {
		limit = int(v)
	}
	if limit > t.cfg.MaxResultsCap {
		limit = t.cfg.MaxResultsCap
	}

	var resp tavilyResponse
	err := t.client.postJSON(ctx, "", tavilyRequest{
		APIKey:        t.cfg.APIKey,
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
		MaxResults:    limit,
	}, &resp)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("tavily search: %w", err)
	}

	out := SearchOutput{
		Query:   query,
		Answer:  resp.Answer,
		Results: make([]SearchResult, 0, len(resp.Results)),
		Sources: make([]Source, 0, len(resp.Results)),
	}
	if out.Answer == "" {
		out.Answer = "No direct answer available"
	}
	cites := make([]string, 0, len(resp.Results))
	for i, r := range resp.Results {
		out.Results = append(out.Results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
		out.Sources = append(out.Sources, Source{Title: r.Title, URL: r.URL})
		cites = append(cites, fmt.Sprintf("%d. %s (%s)", i+1, r.Title, r.URL))
	}
	out.Note = "IMPORTANT: All information above comes from web search results. " +
		"Please cite the source URLs when using this information in your response. Sources: " +
		strings.Join(cites, "; ")

	return tools.NewJSONResult(out)
}
