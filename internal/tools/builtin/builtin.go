// Package builtin provides the data tools offered to the model: Tavily web
// search and the Financial Datasets market data endpoints.
package builtin

import (
	"net/http"

	"finch/internal/config"
	"finch/internal/tools"
)

// Keys carries the credentials that decide which tool families exist.
type Keys struct {
	Tavily            string
	FinancialDatasets string
}

// Options configures the builtin tools.
type Options struct {
	Keys       Keys
	Tavily     TavilyConfig
	Financial  FinancialConfig
	HTTPClient *http.Client
}

// OptionsFromConfig builds Options from the loaded configuration. A
// per-request Financial Datasets key overrides the configured one.
func OptionsFromConfig(cfg *config.Config, financialKey string) Options {
	keys := Keys{
		Tavily:            cfg.Secrets.TavilyKey,
		FinancialDatasets: cfg.Secrets.FinancialDatasetsKey,
	}
	if !config.IsPlaceholderKey(financialKey) {
		keys.FinancialDatasets = financialKey
	}
	client := &http.Client{Timeout: cfg.Tools.HTTPTimeout}
	return Options{
		Keys: keys,
		Tavily: TavilyConfig{
			Endpoint:          cfg.Tools.Tavily.Endpoint,
			DefaultMaxResults: cfg.Tools.Tavily.DefaultMaxResults,
			MaxResultsCap:     cfg.Tools.Tavily.MaxResultsCap,
		},
		Financial:  FinancialConfig{Endpoint: cfg.Tools.FinancialDatasets.Endpoint},
		HTTPClient: client,
	}
}

// Register adds every tool family whose key is usable. It returns the
// names registered.
func Register(r *tools.Registry, opts Options) ([]string, error) {
	var registered []string

	if !config.IsPlaceholderKey(opts.Keys.Tavily) {
		tc := opts.Tavily
		tc.APIKey = opts.Keys.Tavily
		if tc.HTTPClient == nil {
			tc.HTTPClient = opts.HTTPClient
		}
		if err := r.Register(NewSearchWebTool(tc)); err != nil {
			return registered, err
		}
		registered = append(registered, SearchWebName)
	}

	if !config.IsPlaceholderKey(opts.Keys.FinancialDatasets) {
		fc := opts.Financial
		fc.APIKey = opts.Keys.FinancialDatasets
		if fc.HTTPClient == nil {
			fc.HTTPClient = opts.HTTPClient
		}
		for _, t := range NewFinancialTools(fc) {
			if err := r.Register(t); err != nil {
				return registered, err
			}
			registered = append(registered, t.Name())
		}
	}
	return registered, nil
}

// NewRegistry creates a registry holding the usable builtin tools.
func NewRegistry(opts Options) (*tools.Registry, error) {
	r := tools.NewRegistry()
	if _, err := Register(r, opts); err != nil {
		return nil, err
	}
	return r, nil
}

// ToolNames returns the names of all builtin tools.
func ToolNames() []string {
	return []string{
		SearchWebName,
		GetStockPricesName,
		GetIncomeStatementsName,
		GetBalanceSheetsName,
		GetCashFlowStatementsName,
	}
}
