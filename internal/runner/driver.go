package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"finch/internal/delta"
	"finch/internal/provider"
	"finch/internal/tools"
	"finch/pkg/logger"
)

// Resolution says how the first-content wait ended.
type Resolution int

const (
	// ResolvedFirstContent means the model produced visible text.
	ResolvedFirstContent Resolution = iota + 1
	// ResolvedTimeout means the deadline passed before any text.
	ResolvedTimeout
	// ResolvedEmpty means generation completed without visible text.
	ResolvedEmpty
)

// GenerateRequest is the input of one generation.
type GenerateRequest struct {
	Model    string
	System   string
	Messages []provider.Message
	// Tools offered to the model. Empty disables tool calling.
	Tools []provider.Tool
}

// Outcome describes a completed generation.
type Outcome struct {
	// Messages are the assistant and tool messages produced, in order.
	Messages   []provider.Message
	Steps      int
	Resolution Resolution
	Usage      provider.Usage
	// Exhausted is set when the step budget ended a tool loop.
	Exhausted bool
}

// Text returns the concatenated assistant text.
func (o *Outcome) Text() string {
	var b strings.Builder
	for _, m := range o.Messages {
		if m.Role == provider.RoleAssistant {
			b.WriteString(m.Content)
		}
	}
	return b.String()
}

// Driver runs the model/tool step loop of one turn and streams its text
// through the encoder. A Driver is single-use.
type Driver struct {
	provider provider.Provider
	executor *tools.Executor
	enc      *delta.Encoder
	cfg      Config
	state    stateMachine
	first    *Future[Resolution]
	tracer   trace.Tracer
}

// NewDriver creates a driver. executor may be nil when no tools are offered.
func NewDriver(p provider.Provider, executor *tools.Executor, enc *delta.Encoder, cfg Config) *Driver {
	return &Driver{
		provider: p,
		executor: executor,
		enc:      enc,
		cfg:      cfg.withDefaults(),
		first:    NewFuture[Resolution](),
		tracer:   otel.Tracer("finch/runner"),
	}
}

// State returns the current generation state.
func (d *Driver) State() State { return d.state.Current() }

// FirstContent resolves when the first-content race is decided.
func (d *Driver) FirstContent() *Future[Resolution] { return d.first }

// Run streams the generation. On success loading has been cleared exactly
// once and a warning was streamed if no text was produced. On failure the
// error is a *GenerationError or the context error, the driver ends in
// StateErrored and clearing loading is left to the caller.
func (d *Driver) Run(ctx context.Context, req GenerateRequest) (*Outcome, error) {
	if d.provider == nil {
		return nil, ErrNoProvider
	}
	if err := d.state.Transition(StateStreaming); err != nil {
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "runner.generate", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.Int("messages", len(req.Messages)),
		attribute.Int("system.chars", len(req.System)),
	))
	defer span.End()

	stopWatch := make(chan struct{})
	watchDone := make(chan struct{})
	go d.watchFirstContent(ctx, stopWatch, watchDone, len(req.Messages), len(req.System))
	defer func() {
		close(stopWatch)
		<-watchDone
	}()

	out, err := d.loop(ctx, req)
	if err != nil {
		_ = d.state.Transition(StateErrored)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	if d.first.Resolve(ResolvedEmpty) {
		logger.Ctx(ctx).Warn().Int("steps", out.Steps).Msg("Generation completed without content")
		d.clearLoading(ctx)
		d.emit(ctx, delta.TextDelta(EmptyResponseWarning(len(req.Messages), len(req.System))))
	}
	out.Resolution, _ = d.first.Value()
	span.SetAttributes(attribute.Int("steps", out.Steps), attribute.Int("resolution", int(out.Resolution)))

	// The answer is complete at this point; a stop during the settle wait
	// only shortens it.
	d.settle(ctx)
	if err := d.state.Transition(StateFinished); err != nil {
		return nil, err
	}
	return out, nil
}

// watchFirstContent resolves the race with ResolvedTimeout when no text
// arrived before the deadline. Tool calls do not count as text.
func (d *Driver) watchFirstContent(ctx context.Context, stop <-chan struct{}, done chan<- struct{}, msgCount, systemChars int) {
	defer close(done)
	timer := time.NewTimer(d.cfg.FirstContentTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		if d.first.Resolve(ResolvedTimeout) {
			logger.Ctx(ctx).Warn().
				Dur("timeout", d.cfg.FirstContentTimeout).
				Int("messages", msgCount).
				Int("system_chars", systemChars).
				Msg("No model output before deadline")
			d.clearLoading(ctx)
			d.emit(ctx, delta.TextDelta(TimeoutWarning(d.cfg.FirstContentTimeout, msgCount, systemChars)))
		}
	case <-d.first.Done():
	case <-stop:
	case <-ctx.Done():
	}
}

func (d *Driver) loop(ctx context.Context, req GenerateRequest) (*Outcome, error) {
	out := &Outcome{}
	messages := append([]provider.Message(nil), req.Messages...)

	for step := 1; step <= d.cfg.MaxSteps; step++ {
		out.Steps = step
		resp, err := d.stream(ctx, step, provider.ChatRequest{
			Model:       req.Model,
			System:      req.System,
			Messages:    messages,
			Tools:       req.Tools,
			Temperature: d.cfg.Temperature,
			MaxTokens:   d.cfg.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &GenerationError{Step: step, Cause: err}
		}
		if resp.Usage != nil {
			out.Usage.PromptTokens += resp.Usage.PromptTokens
			out.Usage.CompletionTokens += resp.Usage.CompletionTokens
			out.Usage.TotalTokens += resp.Usage.TotalTokens
		}

		assistant := provider.Message{Role: provider.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistant)
		out.Messages = append(out.Messages, assistant)

		if len(resp.ToolCalls) == 0 {
			return out, nil
		}
		if step == d.cfg.MaxSteps {
			out.Exhausted = true
			logger.Ctx(ctx).Warn().Int("steps", step).Err(ErrMaxSteps).Msg("Step budget exhausted with pending tool calls")
			return out, nil
		}

		results, err := d.runTools(ctx, resp.ToolCalls)
		if err != nil {
			return nil, err
		}
		messages = append(messages, results...)
		out.Messages = append(out.Messages, results...)
	}
	return out, nil
}

// stream runs one model call, forwarding text as it arrives.
func (d *Driver) stream(ctx context.Context, step int, req provider.ChatRequest) (*provider.ChatResponse, error) {
	ctx, span := d.tracer.Start(ctx, "runner.step", trace.WithAttributes(attribute.Int("step", step)))
	defer span.End()

	events, err := d.provider.Stream(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	resp := &provider.ChatResponse{}
	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				resp.Content = text.String()
				return resp, nil
			}
			switch ev.Type {
			case provider.EventTypeContent:
				if ev.Delta == "" {
					continue
				}
				if d.first.Resolve(ResolvedFirstContent) {
					d.clearLoading(ctx)
				}
				text.WriteString(ev.Delta)
				if err := d.enc.Text(ev.Delta); err != nil {
					return nil, err
				}
			case provider.EventTypeToolCall:
				if ev.ToolCall != nil {
					resp.ToolCalls = append(resp.ToolCalls, *ev.ToolCall)
				}
			case provider.EventTypeDone:
				resp.Content = text.String()
				resp.FinishReason = ev.FinishReason
				resp.Usage = ev.Usage
				return resp, nil
			case provider.EventTypeError:
				span.RecordError(ev.Error)
				return nil, ev.Error
			}
		}
	}
}

// runTools executes one step's calls concurrently. Results keep the order
// of calls.
func (d *Driver) runTools(ctx context.Context, calls []provider.ToolCall) ([]provider.Message, error) {
	results := make([]provider.Message, len(calls))
	if d.executor == nil {
		for i, c := range calls {
			results[i] = toolMessage(c, fmt.Sprintf("[error] tool %s is not available", c.Name))
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxParallelTools)
	for i, c := range calls {
		g.Go(func() error {
			res, err := d.executor.Execute(gctx, c.Name, c.Arguments)
			if err != nil {
				return err
			}
			results[i] = toolMessage(c, modelContent(res, d.cfg.MaxToolResultBytes))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return results, nil
}

func toolMessage(c provider.ToolCall, content string) provider.Message {
	return provider.Message{Role: provider.RoleTool, ToolCallID: c.ID, Name: c.Name, Content: content}
}

func (d *Driver) settle(ctx context.Context) {
	if d.cfg.SettleDelay <= 0 {
		return
	}
	t := time.NewTimer(d.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		logger.Ctx(ctx).Debug().Msg("Stopped during settle; keeping the completed answer")
	}
}

func (d *Driver) clearLoading(ctx context.Context) {
	d.emit(ctx, delta.LoadingOff())
}

func (d *Driver) emit(ctx context.Context, dl delta.Delta) {
	if err := d.enc.Emit(dl); err != nil && !errors.Is(err, delta.ErrEncoderClosed) {
		logger.Ctx(ctx).Debug().Err(err).Str("type", string(dl.Type())).Msg("Delta not delivered")
	}
}

// TimeoutWarning is streamed when the model produced nothing before the
// deadline.
func TimeoutWarning(timeout time.Duration, messageCount, systemChars int) string {
	return fmt.Sprintf("⚠️ **Response timeout**\n\nThe model did not start responding within %d seconds. "+
		"This is usually caused by a large context (currently %d messages, system prompt %.1fk characters).\n\n"+
		"**Suggestions**:\n1. Simplify the question or shorten the context\n2. Click Stop and send the message again\n"+
		"3. If this keeps happening, check your network connection or try again later\n",
		int(timeout.Seconds()), messageCount, float64(systemChars)/1000)
}

// EmptyResponseWarning is streamed when generation completed without
// any visible text.
func EmptyResponseWarning(messageCount, systemChars int) string {
	return fmt.Sprintf("⚠️ **Empty response**\n\nThe model finished without producing an answer "+
		"(currently %d messages, system prompt %.1fk characters).\n\n"+
		"**Suggestions**:\n1. Rephrase or simplify the question\n2. Send the message again\n"+
		"3. If this keeps happening, try another model\n",
		messageCount, float64(systemChars)/1000)
}
