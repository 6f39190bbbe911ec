package v1

import (
	"net/http"

	"finch/internal/config"
	"finch/internal/gateway/handlers"
	"finch/internal/provider"
)

// HandleModels lists the model catalog.
func (r *Router) HandleModels(w http.ResponseWriter, req *http.Request) {
	handlers.SendJSON(w, http.StatusOK, ModelsResponse{Models: provider.Models(), Default: r.defaultModel()})
}

// HandleKeys reports which keys the server holds, never the keys
// themselves.
func (r *Router) HandleKeys(w http.ResponseWriter, req *http.Request) {
	s := r.config.Secrets
	handlers.SendJSON(w, http.StatusOK, KeysResponse{
		HasOpenAIKey:            !config.IsPlaceholderKey(s.OpenAIKey),
		HasFinancialDatasetsKey: !config.IsPlaceholderKey(s.FinancialDatasetsKey),
	})
}
