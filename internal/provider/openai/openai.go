// Package openai implements the Provider interface on top of go-openai. It
// serves OpenAI itself and any OpenAI-compatible endpoint (DeepSeek) through
// a configurable base URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"finch/internal/provider"
	"finch/pkg/logger"
)

var _ provider.Provider = (*Provider)(nil)

// DefaultTimeout bounds response headers only; stream bodies are unbounded.
const DefaultTimeout = 60 * time.Second

// Config configures a Provider.
type Config struct {
	// Name is reported by Name() and in errors (openai, deepseek).
	Name    string
	APIKey  string
	BaseURL string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Provider talks to an OpenAI-compatible chat completions API.
type Provider struct {
	name   string
	client *goopenai.Client
}

// New creates a Provider.
func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = provider.OpenAI
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   15 * time.Second,
				ResponseHeaderTimeout: DefaultTimeout,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	return &Provider{name: cfg.Name, client: goopenai.NewClientWithConfig(oc)}
}

// Factory returns a provider.Factory that resolves base URLs per provider.
func Factory(baseURLs map[string]string) provider.Factory {
	return func(m provider.Model, apiKey string) (provider.Provider, error) {
		return New(Config{Name: m.Provider, APIKey: apiKey, BaseURL: baseURLs[m.Provider]}), nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.name }

// Chat sends a non-streaming request.
func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	creq := p.buildRequest(req, false)
	logger.Debug().Str("provider", p.name).Str("model", creq.Model).Msg("chat request")

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, p.classify(err)
	}
	out := &provider.ChatResponse{
		Usage: &provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = choice.Message.Content
		out.FinishReason = string(choice.FinishReason)
		for i, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
				ID:        tc.ID,
				Index:     i,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return out, nil
}

// Stream sends a streaming request. Content fragments are forwarded as they
// arrive; tool call fragments are merged by index and emitted whole just
// before the done event.
func (p *Provider) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	creq := p.buildRequest(req, true)
	logger.Debug().Str("provider", p.name).Str("model", creq.Model).
		Int("message_count", len(creq.Messages)).Int("tool_count", len(creq.Tools)).
		Msg("stream request")

	stream, err := p.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, p.classify(err)
	}

	events := make(chan provider.ChatEvent, 32)
	go func() {
		defer close(events)
		defer stream.Close()

		send := func(ev provider.ChatEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		merger := newToolCallMerger()
		var (
			finish string
			usage  *provider.Usage
		)
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				send(provider.ChatEvent{Type: provider.EventTypeError, Error: p.classify(err)})
				return
			}
			if chunk.Usage != nil {
				usage = &provider.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !send(provider.ChatEvent{Type: provider.EventTypeContent, Delta: choice.Delta.Content}) {
					return
				}
			}
			merger.add(choice.Delta.ToolCalls)
			if choice.FinishReason != "" {
				finish = string(choice.FinishReason)
			}
		}

		for _, tc := range merger.calls() {
			tc := tc
			if !send(provider.ChatEvent{Type: provider.EventTypeToolCall, ToolCall: &tc}) {
				return
			}
		}
		send(provider.ChatEvent{Type: provider.EventTypeDone, FinishReason: finish, Usage: usage})
	}()
	return events, nil
}

func (p *Provider) buildRequest(req provider.ChatRequest, stream bool) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		om := goopenai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		msgs = append(msgs, om)
	}

	creq := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		creq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}
	}
	if req.JSONMode {
		creq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	for _, t := range req.Tools {
		fd := &goopenai.FunctionDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
		}
		if len(t.Function.Parameters) > 0 {
			fd.Parameters = t.Function.Parameters
		}
		creq.Tools = append(creq.Tools, goopenai.Tool{Type: goopenai.ToolTypeFunction, Function: fd})
	}
	return creq
}

// classify turns go-openai errors into provider errors.
func (p *Provider) classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return provider.ClassifyStatus(p.name, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return provider.ClassifyStatus(p.name, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		pe := provider.NewProviderError(provider.ErrCodeTimeout, err.Error(), p.name, true)
		pe.Cause = err
		return pe
	}
	pe := provider.NewProviderError(provider.ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err), p.name, true)
	pe.Cause = err
	return pe
}

// toolCallMerger reassembles streamed tool call fragments keyed by index.
type toolCallMerger struct {
	byIndex map[int]*provider.ToolCall
}

func newToolCallMerger() *toolCallMerger {
	return &toolCallMerger{byIndex: make(map[int]*provider.ToolCall)}
}

func (m *toolCallMerger) add(parts []goopenai.ToolCall) {
	for i, part := range parts {
		idx := i
		if part.Index != nil {
			idx = *part.Index
		}
		tc, ok := m.byIndex[idx]
		if !ok {
			tc = &provider.ToolCall{Index: idx}
			m.byIndex[idx] = tc
		}
		if part.ID != "" {
			tc.ID = part.ID
		}
		tc.Name += part.Function.Name
		tc.Arguments += part.Function.Arguments
	}
}

func (m *toolCallMerger) calls() []provider.ToolCall {
	out := make([]provider.ToolCall, 0, len(m.byIndex))
	for _, tc := range m.byIndex {
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("call_%d", tc.Index)
		}
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
