package tools

import (
	"encoding/json"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"finch/internal/provider"
)

// Registry holds the tools offered to the model. Registration order is kept
// so that the provider tool list is stable between requests.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools *orderedmap.OrderedMap[string, Tool]
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: orderedmap.New[string, Tool](),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return NewInvalidArgsError("registry", "tool cannot be nil", nil)
	}

	name := tool.Name()
	if name == "" {
		return NewInvalidArgsError("registry", "tool name cannot be empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools.Get(name); exists {
		return NewToolAlreadyExistsError(name)
	}
	r.tools.Set(name, tool)
	return nil
}

// MustRegister adds a tool to the registry and panics on error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Get(name)
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Key)
	}
	return result
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Len()
}

// ToProviderTools converts the registered tools into provider definitions.
func (r *Registry) ToProviderTools() ([]provider.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]provider.Tool, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		tool := pair.Value
		paramsJSON, err := json.Marshal(tool.Parameters())
		if err != nil {
			return nil, NewInvalidArgsError(tool.Name(), "failed to marshal parameters", err)
		}
		result = append(result, provider.Tool{
			Type: "function",
			Function: provider.ToolFunction{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  paramsJSON,
			},
		})
	}
	return result, nil
}

