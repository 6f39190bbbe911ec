// Package gemini implements the Provider interface for Google Gemini models
// using the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"finch/internal/provider"
	"finch/pkg/logger"
)

var _ provider.Provider = (*Provider)(nil)

// Config configures a Provider.
type Config struct {
	APIKey string
	// BaseURL overrides the Gemini API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Provider streams completions from the Gemini API.
type Provider struct {
	client *genai.Client
}

// New creates a Provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Factory returns a provider.Factory for Google models.
func Factory(baseURL string) provider.Factory {
	return func(m provider.Model, apiKey string) (provider.Provider, error) {
		return New(context.Background(), Config{APIKey: apiKey, BaseURL: baseURL})
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return provider.Google }

// Chat collects the streamed answer.
func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	events, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return provider.Collect(ctx, events)
}

// Stream sends a streaming generate-content request. Text parts are
// forwarded as content events; function calls are emitted before done.
func (p *Provider) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req)
	logger.Debug().Str("provider", provider.Google).Str("model", req.Model).
		Int("content_count", len(contents)).Msg("stream request")

	events := make(chan provider.ChatEvent, 32)
	go func() {
		defer close(events)

		send := func(ev provider.ChatEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			calls  []provider.ToolCall
			finish string
			usage  *provider.Usage
		)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				send(provider.ChatEvent{Type: provider.EventTypeError, Error: classify(err)})
				return
			}
			if resp.UsageMetadata != nil {
				usage = &provider.Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if cand.FinishReason != "" {
				finish = mapFinishReason(cand.FinishReason)
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				if part.FunctionCall != nil {
					calls = append(calls, toToolCall(part.FunctionCall, len(calls)))
					continue
				}
				if part.Text != "" {
					if !send(provider.ChatEvent{Type: provider.EventTypeContent, Delta: part.Text}) {
						return
					}
				}
			}
		}

		for i := range calls {
			if !send(provider.ChatEvent{Type: provider.EventTypeToolCall, ToolCall: &calls[i]}) {
				return
			}
		}
		if len(calls) > 0 {
			finish = provider.FinishReasonToolCalls
		}
		send(provider.ChatEvent{Type: provider.EventTypeDone, FinishReason: finish, Usage: usage})
	}()
	return events, nil
}

func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		config.Temperature = &t
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decl := &genai.FunctionDeclaration{
				Name:        t.Function.Name,
				Description: t.Function.Description,
			}
			if len(t.Function.Parameters) > 0 {
				decl.ParametersJsonSchema = t.Function.Parameters
			}
			decls = append(decls, decl)
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	return config
}

// convertMessages maps chat messages onto Gemini contents. Consecutive tool
// results are folded into one user content as Gemini expects.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	var pending []*genai.Part
	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, genai.NewContentFromParts(pending, genai.RoleUser))
			pending = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case provider.RoleTool:
			pending = append(pending, genai.NewPartFromFunctionResponse(m.Name, map[string]any{"result": m.Content}))
			continue
		case provider.RoleSystem:
			continue
		}
		flush()

		switch m.Role {
		case provider.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return nil, fmt.Errorf("tool call %s arguments: %w", tc.Name, err)
					}
				}
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	flush()
	return contents, nil
}

func toToolCall(fc *genai.FunctionCall, index int) provider.ToolCall {
	args := "{}"
	if len(fc.Args) > 0 {
		if b, err := json.Marshal(fc.Args); err == nil {
			args = string(b)
		}
	}
	id := fc.ID
	if id == "" {
		id = fmt.Sprintf("%s_%d", fc.Name, index)
	}
	return provider.ToolCall{ID: id, Index: index, Name: fc.Name, Arguments: args}
}

func mapFinishReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonStop:
		return provider.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return provider.FinishReasonLength
	default:
		return string(r)
	}
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.ClassifyStatus(provider.Google, apiErr.Code, apiErr.Message, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	pe := provider.NewProviderError(provider.ErrCodeNetworkError, err.Error(), provider.Google, true)
	pe.Cause = err
	return pe
}
