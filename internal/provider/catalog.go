package provider

// Provider names.
const (
	OpenAI   = "openai"
	DeepSeek = "deepseek"
	Google   = "google"
)

// Model is one selectable model.
type Model struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	APIIdentifier string `json:"apiIdentifier"`
	Provider      string `json:"provider"`
	Description   string `json:"description"`
}

// DefaultModelID is used when a request names no model.
const DefaultModelID = "gpt-4o"

var catalog = []Model{
	{ID: "gpt-4o", Label: "GPT 4o", APIIdentifier: "gpt-4o", Provider: OpenAI, Description: "For complex, multi-step tasks"},
	{ID: "deepseek-chat", Label: "DeepSeek Chat", APIIdentifier: "deepseek-chat", Provider: DeepSeek, Description: "DeepSeek general chat model"},
	{ID: "gemini-2.5-pro", Label: "Gemini 2.5 Pro", APIIdentifier: "gemini-2.5-pro", Provider: Google, Description: "Long-context reasoning"},
	{ID: "gemini-3-pro-preview", Label: "Gemini 3 Pro (preview)", APIIdentifier: "gemini-3-pro-preview", Provider: Google, Description: "Preview of the next Gemini Pro"},
	{ID: "gemini-3-flash-preview", Label: "Gemini 3 Flash (preview)", APIIdentifier: "gemini-3-flash-preview", Provider: Google, Description: "Fast preview model"},
}

// Models returns the catalog in display order.
func Models() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a model by id.
func Lookup(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
