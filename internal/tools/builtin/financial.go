package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finch/internal/tools"
)

// Financial Datasets tool names.
const (
	GetStockPricesName        = "getStockPrices"
	GetIncomeStatementsName   = "getIncomeStatements"
	GetBalanceSheetsName      = "getBalanceSheets"
	GetCashFlowStatementsName = "getCashFlowStatements"
)

// FinancialConfig configures the Financial Datasets tools.
type FinancialConfig struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// PriceArgs defines the parameters for getStockPrices.
type PriceArgs struct {
	Ticker             string `json:"ticker" jsonschema:"description=Stock ticker symbol such as AAPL,required"`
	StartDate          string `json:"start_date" jsonschema:"description=Start date in YYYY-MM-DD format,required"`
	EndDate            string `json:"end_date" jsonschema:"description=End date in YYYY-MM-DD format,required"`
	Interval           string `json:"interval,omitempty" jsonschema:"description=Price bar interval,enum=minute,enum=day,enum=week,enum=month,enum=year,default=day"`
	IntervalMultiplier int    `json:"interval_multiplier,omitempty" jsonschema:"description=Multiplier applied to the interval (default 1)"`
}

// StatementArgs defines the parameters for the financial statement tools.
type StatementArgs struct {
	Ticker string `json:"ticker" jsonschema:"description=Stock ticker symbol such as AAPL,required"`
	Period string `json:"period,omitempty" jsonschema:"description=Reporting period,enum=annual,enum=quarterly,enum=ttm,default=ttm"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Number of statements to return (default 5)"`
}

// FinancialTool calls one Financial Datasets endpoint.
type FinancialTool struct {
	tools.BaseTool
	path     string
	label    string
	defaults map[string]string
	client   *apiClient
}

// NewFinancialTools creates the stock price and statement tools.
func NewFinancialTools(cfg FinancialConfig) []*FinancialTool {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.financialdatasets.ai"
	}
	client := newAPIClient(strings.TrimRight(cfg.Endpoint, "/"), cfg.HTTPClient, map[string]string{"X-API-KEY": cfg.APIKey})
	statementDefaults := map[string]string{"period": "ttm", "limit": "5"}

	return []*FinancialTool{
		{
			BaseTool: tools.BaseTool{
				ToolName:        GetStockPricesName,
				ToolDescription: "Get historical price bars (open, high, low, close, volume) for a stock ticker over a date range.",
				ToolParameters:  tools.BuildSchema(PriceArgs{}),
			},
			path:     "/prices/",
			label:    "stock prices",
			defaults: map[string]string{"interval": "day", "interval_multiplier": "1"},
			client:   client,
		},
		{
			BaseTool: tools.BaseTool{
				ToolName:        GetIncomeStatementsName,
				ToolDescription: "Get income statements (revenue, expenses, net income, EPS) for a stock ticker.",
				ToolParameters:  tools.BuildSchema(StatementArgs{}),
			},
			path:     "/financials/income-statements/",
			label:    "income statements",
			defaults: statementDefaults,
			client:   client,
		},
		{
			BaseTool: tools.BaseTool{
				ToolName:        GetBalanceSheetsName,
				ToolDescription: "Get balance sheets (assets, liabilities, shareholders equity) for a stock ticker.",
				ToolParameters:  tools.BuildSchema(StatementArgs{}),
			},
			path:     "/financials/balance-sheets/",
			label:    "balance sheets",
			defaults: statementDefaults,
			client:   client,
		},
		{
			BaseTool: tools.BaseTool{
				ToolName:        GetCashFlowStatementsName,
				ToolDescription: "Get cash flow statements (operating, investing, financing cash flows) for a stock ticker.",
				ToolParameters:  tools.BuildSchema(StatementArgs{}),
			},
			path:     "/financials/cash-flow-statements/",
			label:    "cash flow statements",
			defaults: statementDefaults,
			client:   client,
		},
	}
}

// LoadingMessage implements tools.LoadingMessager.
func (t *FinancialTool) LoadingMessage(args map[string]any) string {
	ticker, _ := args["ticker"].(string)
	return fmt.Sprintf("Fetching %s for %s...", t.label, strings.ToUpper(ticker))
}

// Execute queries the endpoint and returns its JSON body.
func (t *FinancialTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	ticker, _ := args["ticker"].(string)
	if strings.TrimSpace(ticker) == "" {
		return tools.ToolResult{}, tools.NewInvalidArgsError(t.Name(), "ticker is required", nil)
	}

	q := url.Values{}
	for k, v := range t.defaults {
		q.Set(k, v)
	}
	for k, v := range args {
		if s := queryValue(v); s != "" {
			q.Set(k, s)
		}
	}
	q.Set("ticker", strings.ToUpper(ticker))

	if start, end := q.Get("start_date"), q.Get("end_date"); start != "" && end != "" {
		if err := checkDateRange(start, end); err != nil {
			return tools.ToolResult{}, tools.NewInvalidArgsError(t.Name(), err.Error(), nil)
		}
	}

	var body json.RawMessage
	if err := t.client.getJSON(ctx, t.path, q, &body); err != nil {
		return tools.ToolResult{}, fmt.Errorf("financial datasets %s: %w", t.label, err)
	}
	return tools.ToolResult{
		Content:  string(body),
		Metadata: map[string]any{"ticker": q.Get("ticker"), "endpoint": t.path},
	}, nil
}

func queryValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func checkDateRange(start, end string) error {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return fmt.Errorf("start_date %q is not YYYY-MM-DD", start)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return fmt.Errorf("end_date %q is not YYYY-MM-DD", end)
	}
	if e.Before(s) {
		return fmt.Errorf("end_date %s is before start_date %s", end, start)
	}
	return nil
}
